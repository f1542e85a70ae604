package model

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zlib"

	"github.com/YuminosukeSato/treepredict/pkg/codec/base91"
	"github.com/YuminosukeSato/treepredict/pkg/errors"
)

// MaxInflatedSize は圧縮ペイロードを展開した後の最大サイズ
const MaxInflatedSize = 64 << 20

// LoadPayload はファイルからモデルのペイロードを読み込む
//
// パラメータ:
//   - path: 読み込み元のファイルパス
//
// 戻り値:
//   - []byte: ファイルの内容（末尾の改行は除去される）
//   - error: 読み込みに失敗した場合のエラー
//
// 使用例:
//
//	payload, err := model.LoadPayload("tree.opcode")
//	m, err := model.FromPayload("tree", model.Opcode, payload)
func LoadPayload(path string) ([]byte, error) {
	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return nil, errors.NewValidationError("path", "path traversal detected", path)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read payload %s", cleanPath)
	}
	return bytes.TrimRight(data, "\r\n"), nil
}

// SavePayload はペイロードをファイルに保存する
//
// パラメータ:
//   - path: 保存先のファイルパス
//   - payload: 保存するペイロード
//
// 戻り値:
//   - error: 保存に失敗した場合のエラー
func SavePayload(path string, payload []byte) error {
	if err := os.WriteFile(filepath.Clean(path), payload, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write payload %s", path)
	}
	return nil
}

// Compress はバイト列をzlibで圧縮し、basE91テキストとして返す
//
// 圧縮モデル種別（OpcodeCompressed, LegacyCompressed）のペイロードはこの形式。
func Compress(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create zlib writer")
	}
	if _, err := w.Write(raw); err != nil {
		return nil, errors.Wrap(err, "failed to compress payload")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to compress payload")
	}
	return base91.Encode(make([]byte, 0, base91.EncodedLen(buf.Len())), buf.Bytes()), nil
}

// Decompress はCompressの逆変換
//
// 戻り値のエラー:
//   - InvalidEncodingError: basE91のアルファベット外の文字を含む場合
//   - CorruptModelError: zlibストリームが壊れている、またはMaxInflatedSizeを超える場合
func Decompress(text []byte) ([]byte, error) {
	compressed, err := base91.Decode(nil, text)
	if err != nil {
		return nil, err
	}
	r, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, errors.NewCorruptModelError(fmt.Sprintf("bad zlib header: %v", err))
	}
	defer r.Close()

	raw, err := io.ReadAll(io.LimitReader(r, MaxInflatedSize+1))
	if err != nil {
		return nil, errors.NewCorruptModelError(fmt.Sprintf("bad zlib stream: %v", err))
	}
	if len(raw) > MaxInflatedSize {
		return nil, errors.NewCorruptModelError(fmt.Sprintf("inflated payload exceeds %d bytes", MaxInflatedSize))
	}
	return raw, nil
}
