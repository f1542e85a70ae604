package treepredict

import (
	"github.com/YuminosukeSato/treepredict/pkg/log"
	"github.com/YuminosukeSato/treepredict/sklearn/tree/stackmachine"
)

// DefaultParallelThreshold is the row count up to which batch prediction
// stays on the calling goroutine.
const DefaultParallelThreshold = 1024

type options struct {
	separator         byte
	verify            bool
	parallelThreshold int
	logger            log.Logger
}

func defaultOptions() options {
	return options{
		separator:         stackmachine.DefaultSeparator,
		verify:            true,
		parallelThreshold: DefaultParallelThreshold,
	}
}

// Option configures an Evaluator or a Cache.
type Option func(*options)

// WithSeparator sets the token separator of opcode scripts.
func WithSeparator(sep byte) Option {
	return func(o *options) {
		o.separator = sep
	}
}

// WithVerify turns legacy checksum verification on or off. It is on by
// default; turning it off logs a warning for every legacy model loaded.
func WithVerify(verify bool) Option {
	return func(o *options) {
		o.verify = verify
	}
}

// WithParallelThreshold sets the row count above which batch prediction
// fans out across CPUs.
func WithParallelThreshold(n int) Option {
	return func(o *options) {
		o.parallelThreshold = n
	}
}

// WithLogger replaces the package logger.
func WithLogger(l log.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.GetLoggerWithName("treepredict")
	}
	return o
}
