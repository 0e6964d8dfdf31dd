// Package failure はワークフロー全体で共通のエラー分類を定義します。
package failure

import "errors"

// 各ユースケースが返すエラーは必ず以下のいずれかの種別に属します。
var (
	ErrValidation   = errors.New("validation error")
	ErrPrecondition = errors.New("precondition error")
	ErrState        = errors.New("state error")
	ErrForbidden    = errors.New("forbidden")
	ErrExpired      = errors.New("expired")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
)

var kinds = []error{
	ErrValidation,
	ErrPrecondition,
	ErrState,
	ErrForbidden,
	ErrExpired,
	ErrConflict,
	ErrNotFound,
}

// Error は種別付きのドメインエラーです。
type Error struct {
	kind error
	msg  string
}

// New は種別 kind に属するエラーを生成します。
func New(kind error, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func (e *Error) Error() string {
	return e.msg
}

// Unwrap は種別を返し、errors.Is(err, failure.ErrXxx) を成立させます。
func (e *Error) Unwrap() error {
	return e.kind
}

// Kind はエラーの種別を返します。
func (e *Error) Kind() error {
	return e.kind
}

// KindOf は err が属する種別を返します。種別を持たない場合は nil です。
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
