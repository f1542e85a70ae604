// Package errors はtreepredict全体のエラーハンドリングと警告システムを提供します。
// 推論経路（オペコードVM・レガシー形式）ごとに原因を特定できる構造化エラー型を定義します。
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	グローバル警告ハンドリング
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		// デフォルトのハンドラは標準エラー出力にログを出す
		log.Printf("treepredict-Warning: %v\n", w)
	}
	// zerologロガー（循環importを避けるため遅延初期化）
	zerologWarnFunc func(warning error)
)

// SetWarningHandler は警告ハンドラを設定します。
//
// 例:
//
//	errors.SetWarningHandler(func(w error) {
//	    // 警告を無視する
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc はzerolog警告関数を設定します（循環importを避けるため）。
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn は警告を発生させます。
// zerologが設定されている場合は構造化ログとして出力し、そうでなければ従来のハンドラを使用します。
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}

	if warningHandler != nil {
		warningHandler(w)
	}
}

// UnverifiedModelWarning はチェックサム検証なしでレガシーモデルを読み込んだ場合の警告です。
type UnverifiedModelWarning struct {
	ModelID string
}

func (w *UnverifiedModelWarning) Error() string {
	return fmt.Sprintf("legacy model %q decoded without checksum verification", w.ModelID)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *UnverifiedModelWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("model_id", w.ModelID).
		Str("type", "UnverifiedModelWarning")
}

// NewUnverifiedModelWarning は新しいUnverifiedModelWarningを作成します。
func NewUnverifiedModelWarning(modelID string) *UnverifiedModelWarning {
	return &UnverifiedModelWarning{ModelID: modelID}
}

// ===========================================================================
//
//	木モデル・コンパイラのエラー型
//
// ===========================================================================

// MalformedModelError は木構造が不変条件（子の欠落・循環・共有ノード）を満たさない場合のエラーです。
type MalformedModelError struct {
	Op     string
	Reason string
}

func (e *MalformedModelError) Error() string {
	return fmt.Sprintf("treepredict: %s: malformed model: %s", e.Op, e.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *MalformedModelError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("reason", e.Reason).
		Str("type", "MalformedModelError")
}

// NewMalformedModelError は新しいMalformedModelErrorを作成し、スタックトレースを付与します。
func NewMalformedModelError(op, reason string) error {
	return errors.WithStack(&MalformedModelError{Op: op, Reason: reason})
}

// EncodingConflictError はスクリプトの区切り文字がオペランドの表現と衝突する場合のエラーです。
type EncodingConflictError struct {
	Separator byte
}

func (e *EncodingConflictError) Error() string {
	return fmt.Sprintf("treepredict: separator %q collides with operand encoding", e.Separator)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *EncodingConflictError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("separator", string(e.Separator)).
		Str("type", "EncodingConflictError")
}

// NewEncodingConflictError は新しいEncodingConflictErrorを作成し、スタックトレースを付与します。
func NewEncodingConflictError(sep byte) error {
	return errors.WithStack(&EncodingConflictError{Separator: sep})
}

// ===========================================================================
//
//	スタックマシンのエラー型
//
// ===========================================================================

// MalformedScriptError はオペコードスクリプトの解析・実行に失敗した場合のエラーです。
// Offset は問題の命令位置で、特定できない場合は -1 です。
type MalformedScriptError struct {
	Offset int
	Reason string
}

func (e *MalformedScriptError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("treepredict: malformed script: %s", e.Reason)
	}
	return fmt.Sprintf("treepredict: malformed script at instruction %d: %s", e.Offset, e.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *MalformedScriptError) MarshalZerologObject(event *zerolog.Event) {
	event.Int("offset", e.Offset).
		Str("reason", e.Reason).
		Str("type", "MalformedScriptError")
}

// NewMalformedScriptError は新しいMalformedScriptErrorを作成し、スタックトレースを付与します。
func NewMalformedScriptError(offset int, reason string) error {
	return errors.WithStack(&MalformedScriptError{Offset: offset, Reason: reason})
}

// ModeMismatchError は分類・回帰のモード指定と終端命令の種類が一致しない場合のエラーです。
type ModeMismatchError struct {
	Want string
	Got  string
}

func (e *ModeMismatchError) Error() string {
	return fmt.Sprintf("treepredict: mode mismatch: requested %s but model returns %s", e.Want, e.Got)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ModeMismatchError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("want", e.Want).
		Str("got", e.Got).
		Str("type", "ModeMismatchError")
}

// NewModeMismatchError は新しいModeMismatchErrorを作成し、スタックトレースを付与します。
func NewModeMismatchError(want, got string) error {
	return errors.WithStack(&ModeMismatchError{Want: want, Got: got})
}

// ===========================================================================
//
//	レガシー形式のエラー型
//
// ===========================================================================

// InvalidEncodingError はテキスト符号化にアルファベット外の文字が含まれる場合のエラーです。
type InvalidEncodingError struct {
	Position int
	Char     byte
}

func (e *InvalidEncodingError) Error() string {
	return fmt.Sprintf("treepredict: invalid character %q at position %d", e.Char, e.Position)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *InvalidEncodingError) MarshalZerologObject(event *zerolog.Event) {
	event.Int("position", e.Position).
		Str("char", string(e.Char)).
		Str("type", "InvalidEncodingError")
}

// NewInvalidEncodingError は新しいInvalidEncodingErrorを作成し、スタックトレースを付与します。
func NewInvalidEncodingError(pos int, c byte) error {
	return errors.WithStack(&InvalidEncodingError{Position: pos, Char: c})
}

// CorruptModelError はレガシーモデルのバイト列が壊れている場合のエラーです。
type CorruptModelError struct {
	Reason string
}

func (e *CorruptModelError) Error() string {
	return fmt.Sprintf("treepredict: corrupt model: %s", e.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *CorruptModelError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("reason", e.Reason).
		Str("type", "CorruptModelError")
}

// NewCorruptModelError は新しいCorruptModelErrorを作成し、スタックトレースを付与します。
func NewCorruptModelError(reason string) error {
	return errors.WithStack(&CorruptModelError{Reason: reason})
}

// UnsupportedVersionError はフォーマットのバージョン指定が欠落または未知の場合のエラーです。
// Version が -1 の場合はマジックバイト自体が見つからなかったことを示します。
type UnsupportedVersionError struct {
	Version int
}

func (e *UnsupportedVersionError) Error() string {
	if e.Version < 0 {
		return "treepredict: unsupported model format: version marker not found"
	}
	return fmt.Sprintf("treepredict: unsupported model format version %d", e.Version)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *UnsupportedVersionError) MarshalZerologObject(event *zerolog.Event) {
	event.Int("version", e.Version).
		Str("type", "UnsupportedVersionError")
}

// NewUnsupportedVersionError は新しいUnsupportedVersionErrorを作成し、スタックトレースを付与します。
func NewUnsupportedVersionError(version int) error {
	return errors.WithStack(&UnsupportedVersionError{Version: version})
}

// ===========================================================================
//
//	ファサードのエラー型
//
// ===========================================================================

// UnknownModelTypeError はモデル種別の識別子が未知の場合のエラーです。
type UnknownModelTypeError struct {
	Type int
}

func (e *UnknownModelTypeError) Error() string {
	return fmt.Sprintf("treepredict: unknown model type %d", e.Type)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *UnknownModelTypeError) MarshalZerologObject(event *zerolog.Event) {
	event.Int("model_type", e.Type).
		Str("type", "UnknownModelTypeError")
}

// NewUnknownModelTypeError は新しいUnknownModelTypeErrorを作成し、スタックトレースを付与します。
func NewUnknownModelTypeError(t int) error {
	return errors.WithStack(&UnknownModelTypeError{Type: t})
}

// ValidationError は入力パラメータの検証に失敗した場合のエラーです。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("treepredict: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError は新しいValidationErrorを作成し、スタックトレースを付与します。
func NewValidationError(param, reason string, value interface{}) error {
	return errors.WithStack(&ValidationError{ParamName: param, Reason: reason, Value: value})
}

// ModelError はモデルIDを伴う一般的なエラーです。下位のエラーをラップします。
type ModelError struct {
	ModelID string
	Op      string
	Err     error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("treepredict: %s %q: %v", e.Op, e.ModelID, e.Err)
	}
	return fmt.Sprintf("treepredict: %s %q", e.Op, e.ModelID)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError は新しいModelErrorを作成し、スタックトレースを付与します。
func NewModelError(modelID, op string, err error) error {
	return errors.WithStack(&ModelError{ModelID: modelID, Op: op, Err: err})
}

// ===========================================================================
//
//	cockroachdb/errors ラッパー関数
//
// ===========================================================================

// Is はエラーが特定のターゲットエラーかどうかを判定します。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As はエラーが特定の型にキャスト可能かどうかを判定します。
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap は既存のエラーをメッセージ付きでラップします。
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf は既存のエラーをフォーマット文字列でラップします。
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New は新しいエラーを作成します。
func New(message string) error {
	return errors.New(message)
}

// Newf は新しいフォーマット済みエラーを作成します。
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack はエラーにスタックトレースを付与します。
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	共通エラー変数
//
// ===========================================================================

var (
	// ErrEmptyPayload は空のモデルペイロードが渡された場合のエラーです。
	ErrEmptyPayload = New("empty model payload")

	// ErrNilVector は特徴ベクトルが渡されなかった場合のエラーです。
	ErrNilVector = New("nil feature vector")
)
