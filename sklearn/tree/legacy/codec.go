package legacy

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/zeebo/xxh3"

	"github.com/YuminosukeSato/treepredict/pkg/codec/base91"
	"github.com/YuminosukeSato/treepredict/pkg/errors"
	"github.com/YuminosukeSato/treepredict/sklearn/tree"
)

// Binary layout, version 1. All fixed-width numbers are little endian.
//
//	magic    "DTNV"
//	version  uint8
//	task     uint8   0 classification, 1 regression
//	nodes    preorder; each starts with a tag byte
//	  leaf         classification: varint class, uvarint n, n float64 posteriori
//	               regression:     float64 value
//	  quantitative uvarint feature, float64 threshold, true, false
//	  nominal      uvarint feature, uvarint n, n float64 codes, true, false
//	checksum uint64  xxh3 of every preceding byte
const (
	magic          = "DTNV"
	Version1 uint8 = 1

	headerSize   = len(magic) + 2
	checksumSize = 8
)

const (
	tagLeaf uint8 = iota
	tagQuantitative
	tagNominal
)

const (
	taskClassification uint8 = 0
	taskRegression     uint8 = 1
)

// maxIndex caps decoded feature and class indices.
const maxIndex = math.MaxInt32

// Decode reads a basE91-encoded legacy model from encoded[:length]. With
// verify set, the trailing checksum must match.
//
// Errors: InvalidEncodingError for characters outside the basE91 alphabet,
// UnsupportedVersionError when the magic is absent or the version unknown,
// CorruptModelError for truncated, trailing or malformed data and checksum
// mismatches.
func Decode(encoded []byte, length int, verify bool) (*NodeV1, tree.Task, error) {
	if length < 0 || length > len(encoded) {
		return nil, 0, errors.NewCorruptModelError(fmt.Sprintf("length %d out of range [0, %d]", length, len(encoded)))
	}
	raw, err := base91.Decode(nil, encoded[:length])
	if err != nil {
		return nil, 0, err
	}
	return DecodeBinary(raw, verify)
}

// DecodeText is Decode over a whole string.
func DecodeText(text string, verify bool) (*NodeV1, tree.Task, error) {
	return Decode([]byte(text), len(text), verify)
}

// DecodeBinary reads a legacy model from raw bytes.
func DecodeBinary(b []byte, verify bool) (*NodeV1, tree.Task, error) {
	if len(b) < len(magic) || string(b[:len(magic)]) != magic {
		return nil, 0, errors.NewUnsupportedVersionError(-1)
	}
	if len(b) < len(magic)+1 {
		return nil, 0, errors.NewUnsupportedVersionError(-1)
	}
	if v := b[len(magic)]; v != Version1 {
		return nil, 0, errors.NewUnsupportedVersionError(int(v))
	}
	if len(b) < headerSize+checksumSize {
		return nil, 0, errors.NewCorruptModelError("truncated header")
	}

	body := b[:len(b)-checksumSize]
	if verify {
		want := binary.LittleEndian.Uint64(b[len(body):])
		if got := xxh3.Hash(body); got != want {
			return nil, 0, errors.NewCorruptModelError(fmt.Sprintf("checksum mismatch: stored %016x, computed %016x", want, got))
		}
	}

	var task tree.Task
	switch b[len(magic)+1] {
	case taskClassification:
		task = tree.Classification
	case taskRegression:
		task = tree.Regression
	default:
		return nil, 0, errors.NewCorruptModelError(fmt.Sprintf("unknown task %d", b[len(magic)+1]))
	}

	r := reader{buf: body, off: headerSize, regression: task == tree.Regression}
	root, err := r.node(0)
	if err != nil {
		return nil, 0, err
	}
	if r.off != len(body) {
		return nil, 0, errors.NewCorruptModelError(fmt.Sprintf("%d trailing bytes after tree", len(body)-r.off))
	}
	return root, task, nil
}

type reader struct {
	buf        []byte
	off        int
	regression bool
}

func (r *reader) corrupt(what string) error {
	return errors.NewCorruptModelError(fmt.Sprintf("%s at byte %d", what, r.off))
}

func (r *reader) u8() (byte, error) {
	if r.off >= len(r.buf) {
		return 0, r.corrupt("unexpected end of data")
	}
	c := r.buf[r.off]
	r.off++
	return c, nil
}

func (r *reader) f64() (float64, error) {
	if len(r.buf)-r.off < 8 {
		return 0, r.corrupt("unexpected end of data")
	}
	bits := binary.LittleEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return math.Float64frombits(bits), nil
}

func (r *reader) uvarint() (uint64, error) {
	x, n := binary.Uvarint(r.buf[r.off:])
	if n <= 0 {
		return 0, r.corrupt("bad uvarint")
	}
	r.off += n
	return x, nil
}

func (r *reader) varint() (int64, error) {
	x, n := binary.Varint(r.buf[r.off:])
	if n <= 0 {
		return 0, r.corrupt("bad varint")
	}
	r.off += n
	return x, nil
}

func (r *reader) index() (int, error) {
	x, err := r.uvarint()
	if err != nil {
		return 0, err
	}
	if x > maxIndex {
		return 0, r.corrupt(fmt.Sprintf("index %d too large", x))
	}
	return int(x), nil
}

func (r *reader) floats() ([]float64, error) {
	n, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	if n > uint64(len(r.buf)-r.off)/8 {
		return nil, r.corrupt(fmt.Sprintf("array of %d values overruns data", n))
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]float64, n)
	for i := range out {
		if out[i], err = r.f64(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *reader) node(depth int) (*NodeV1, error) {
	if depth > tree.MaxDepth {
		return nil, r.corrupt(fmt.Sprintf("depth exceeds %d", tree.MaxDepth))
	}
	tag, err := r.u8()
	if err != nil {
		return nil, err
	}

	switch tag {
	case tagLeaf:
		return r.leaf()
	case tagQuantitative, tagNominal:
		n := &NodeV1{Type: tree.Quantitative}
		if n.Feature, err = r.index(); err != nil {
			return nil, err
		}
		if tag == tagNominal {
			n.Type = tree.Nominal
			if n.Categories, err = r.floats(); err != nil {
				return nil, err
			}
		} else {
			if n.Threshold, err = r.f64(); err != nil {
				return nil, err
			}
			if math.IsNaN(n.Threshold) {
				return nil, r.corrupt("NaN threshold")
			}
		}
		if n.True, err = r.node(depth + 1); err != nil {
			return nil, err
		}
		if n.False, err = r.node(depth + 1); err != nil {
			return nil, err
		}
		return n, nil
	default:
		r.off--
		return nil, r.corrupt(fmt.Sprintf("unknown node tag %d", tag))
	}
}

func (r *reader) leaf() (*NodeV1, error) {
	n := &NodeV1{Leaf: true, Regression: r.regression}
	var err error
	if r.regression {
		n.Value, err = r.f64()
		return n, err
	}
	class, err := r.varint()
	if err != nil {
		return nil, err
	}
	if class < 0 || class > maxIndex {
		return nil, r.corrupt(fmt.Sprintf("class index %d out of range", class))
	}
	n.Class = int(class)
	if n.Posteriori, err = r.floats(); err != nil {
		return nil, err
	}
	return n, nil
}

// Encode serializes root in the version 1 layout, checksum included.
func Encode(root *NodeV1, task tree.Task) ([]byte, error) {
	var taskByte uint8
	switch task {
	case tree.Classification:
		taskByte = taskClassification
	case tree.Regression:
		taskByte = taskRegression
	default:
		return nil, errors.NewMalformedModelError("encode", fmt.Sprintf("unknown task %d", int(task)))
	}

	buf := make([]byte, 0, 256)
	buf = append(buf, magic...)
	buf = append(buf, Version1, taskByte)
	buf, err := appendNode(buf, root, task == tree.Regression, 0)
	if err != nil {
		return nil, err
	}
	return binary.LittleEndian.AppendUint64(buf, xxh3.Hash(buf)), nil
}

// EncodeText is Encode followed by basE91.
func EncodeText(root *NodeV1, task tree.Task) (string, error) {
	b, err := Encode(root, task)
	if err != nil {
		return "", err
	}
	return base91.EncodeToString(b), nil
}

func appendFloat(buf []byte, v float64) []byte {
	return binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
}

func appendFloats(buf []byte, vs []float64) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(vs)))
	for _, v := range vs {
		buf = appendFloat(buf, v)
	}
	return buf
}

func appendNode(buf []byte, n *NodeV1, regression bool, depth int) ([]byte, error) {
	if depth > tree.MaxDepth {
		return nil, errors.NewMalformedModelError("encode", fmt.Sprintf("depth exceeds %d", tree.MaxDepth))
	}
	if n == nil {
		return nil, errors.NewMalformedModelError("encode", "missing node")
	}
	if n.Leaf {
		if n.Regression != regression {
			return nil, errors.NewMalformedModelError("encode", "leaf kind does not match task")
		}
		buf = append(buf, tagLeaf)
		if regression {
			return appendFloat(buf, n.Value), nil
		}
		if n.Class < 0 {
			return nil, errors.NewMalformedModelError("encode", fmt.Sprintf("negative class index %d", n.Class))
		}
		buf = binary.AppendVarint(buf, int64(n.Class))
		return appendFloats(buf, n.Posteriori), nil
	}

	if n.Feature < 0 {
		return nil, errors.NewMalformedModelError("encode", fmt.Sprintf("negative feature index %d", n.Feature))
	}
	if n.Type == tree.Nominal {
		buf = append(buf, tagNominal)
		buf = binary.AppendUvarint(buf, uint64(n.Feature))
		buf = appendFloats(buf, n.Categories)
	} else {
		buf = append(buf, tagQuantitative)
		buf = binary.AppendUvarint(buf, uint64(n.Feature))
		buf = appendFloat(buf, n.Threshold)
	}
	buf, err := appendNode(buf, n.True, regression, depth+1)
	if err != nil {
		return nil, err
	}
	return appendNode(buf, n.False, regression, depth+1)
}
