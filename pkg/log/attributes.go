// Package log defines standard attribute keys for inference operations.
//
// These keys follow a hierarchical naming convention (e.g., "model.id",
// "vm.instructions") to enable structured log analysis and filtering.
package log

// Model and Operation Context
const (
	// ModelIDKey is the caller-supplied model identifier, also the cache key.
	ModelIDKey = "model.id"

	// ModelTypeKey is the model-type discriminator.
	// Examples: "opcode", "legacy", "opcode_compressed"
	ModelTypeKey = "model.type"

	// TaskKey is "classification" or "regression".
	TaskKey = "model.task"

	// OperationKey specifies the operation being performed.
	// Standard values: "compile", "parse", "decode", "predict", "predict_batch"
	OperationKey = "ml.operation"

	// ComponentKey identifies which component is performing the operation.
	ComponentKey = "ml.component"
)

// Model shape
const (
	// InstructionsKey is the instruction count of a parsed opcode program.
	InstructionsKey = "vm.instructions"

	// MaxStackKey is the maximum stack depth of a parsed opcode program.
	MaxStackKey = "vm.max_stack"

	// NodesKey is the node count of a decoded legacy tree.
	NodesKey = "tree.nodes"

	// DepthKey is the depth of a tree.
	DepthKey = "tree.depth"

	// PayloadBytesKey is the size of the serialized model payload.
	PayloadBytesKey = "model.payload_bytes"
)

// Prediction context
const (
	// SamplesKey indicates the number of rows in a batch prediction.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features per row.
	FeaturesKey = "data.features"

	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// CacheHitKey reports whether the model came from the cache.
	CacheHitKey = "cache.hit"

	// CacheSizeKey is the number of models held by the cache.
	CacheSizeKey = "cache.size"
)

// Error context
const (
	// ErrorCodeKey provides a structured error code for programmatic handling.
	ErrorCodeKey = "error.code"

	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"

	// StacktraceKey contains stack trace information for debugging.
	// Automatically populated by the zerolog logger for pkg/errors values.
	StacktraceKey = "error.stacktrace"
)

// Standard attribute values.
const (
	OperationCompile      = "compile"
	OperationParse        = "parse"
	OperationDecode       = "decode"
	OperationPredict      = "predict"
	OperationPredictBatch = "predict_batch"
	OperationEncode       = "encode"

	ErrorMalformedModel     = "MALFORMED_MODEL"
	ErrorMalformedScript    = "MALFORMED_SCRIPT"
	ErrorModeMismatch       = "MODE_MISMATCH"
	ErrorCorruptModel       = "CORRUPT_MODEL"
	ErrorUnknownModelType   = "UNKNOWN_MODEL_TYPE"
	ErrorUnsupportedVersion = "UNSUPPORTED_VERSION"
)
