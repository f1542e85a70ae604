// Package base91 implements basE91, a printable binary-to-text encoding that
// needs about 23% overhead against base64's 33%. Legacy tree payloads are
// carried as basE91 text so they survive columns and files that only hold
// printable characters.
package base91

import (
	"github.com/YuminosukeSato/treepredict/pkg/errors"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz" +
	"0123456789!#$%&()*+,./:;<=>?@[]^_`{|}~\""

var decodeTable = func() (t [256]int16) {
	for i := range t {
		t[i] = -1
	}
	for i := 0; i < len(alphabet); i++ {
		t[alphabet[i]] = int16(i)
	}
	return t
}()

// EncodedLen returns an upper bound on the encoded size of n bytes.
func EncodedLen(n int) int {
	return (n*16+12)/13 + 1
}

// Encode appends the encoding of src to dst.
func Encode(dst, src []byte) []byte {
	var b uint32
	var n uint
	for _, c := range src {
		b |= uint32(c) << n
		n += 8
		if n > 13 {
			v := b & 8191
			if v > 88 {
				b >>= 13
				n -= 13
			} else {
				v = b & 16383
				b >>= 14
				n -= 14
			}
			dst = append(dst, alphabet[v%91], alphabet[v/91])
		}
	}
	if n > 0 {
		dst = append(dst, alphabet[b%91])
		if n > 7 || b > 90 {
			dst = append(dst, alphabet[b/91])
		}
	}
	return dst
}

// EncodeToString returns the encoding of src.
func EncodeToString(src []byte) string {
	return string(Encode(make([]byte, 0, EncodedLen(len(src))), src))
}

// Decode appends the decoding of src to dst. A character outside the
// alphabet fails with InvalidEncodingError carrying its position.
func Decode(dst, src []byte) ([]byte, error) {
	var b uint32
	var n uint
	v := -1
	for i, c := range src {
		d := decodeTable[c]
		if d < 0 {
			return nil, errors.NewInvalidEncodingError(i, c)
		}
		if v < 0 {
			v = int(d)
			continue
		}
		v += int(d) * 91
		b |= uint32(v) << n
		if v&8191 > 88 {
			n += 13
		} else {
			n += 14
		}
		for n > 7 {
			dst = append(dst, byte(b))
			b >>= 8
			n -= 8
		}
		v = -1
	}
	if v >= 0 {
		dst = append(dst, byte(b|uint32(v)<<n))
	}
	return dst, nil
}

// DecodeString returns the bytes represented by s.
func DecodeString(s string) ([]byte, error) {
	return Decode(make([]byte, 0, len(s)*14/16+1), []byte(s))
}
