package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation は入力値（IV・鍵・エンコーディング等）が不正な場合のエラー。
	ErrValidation = errors.New("validation failed")

	// ErrNotFound はファイル・共有・鍵が存在しない場合のエラー。
	ErrNotFound = errors.New("not found")

	// ErrAccessDenied は認可に失敗した場合のエラー。
	ErrAccessDenied = errors.New("access denied")

	// ErrCrypto は暗号処理のエラー。メッセージに鍵や平文を含めない。
	ErrCrypto = errors.New("crypto failure")

	// ErrAuthenticationFailure はAEADタグ検証に失敗した場合のエラー。
	ErrAuthenticationFailure = fmt.Errorf("%w: authentication failure", ErrCrypto)

	// ErrAlgorithmMismatch はラップ時とアンラップ時の方式が一致しない場合のエラー。
	ErrAlgorithmMismatch = fmt.Errorf("%w: algorithm mismatch", ErrCrypto)

	// ErrKeyFormat は鍵の長さ・形式が不正な場合のエラー。
	ErrKeyFormat = fmt.Errorf("%w: invalid key format", ErrCrypto)

	// ErrMigrationFailed はマイグレーション実行時のエラー。
	ErrMigrationFailed = errors.New("migration failed")

	// ErrMigrationFileNotFound はマイグレーションファイルが見つからない場合のエラー。
	ErrMigrationFileNotFound = errors.New("migration file not found")

	// ErrInvalidMigrationFile はマイグレーションファイルのフォーマットが不正な場合のエラー。
	ErrInvalidMigrationFile = errors.New("invalid migration file")
)

// DenyReason は認可拒否の理由。
type DenyReason string

const (
	ReasonNotOwner               DenyReason = "not-owner"
	ReasonExpired                DenyReason = "expired"
	ReasonNoGrant                DenyReason = "no-grant"
	ReasonInsufficientPermission DenyReason = "insufficient-permission"
)

// AccessDeniedError は理由付きの認可エラー。
type AccessDeniedError struct {
	Reason DenyReason
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access denied: %s", e.Reason)
}

// Is は ErrAccessDenied との比較を可能にする。
func (e *AccessDeniedError) Is(target error) bool {
	return target == ErrAccessDenied
}

// Denied は理由付きの AccessDeniedError を返す。
func Denied(reason DenyReason) error {
	return &AccessDeniedError{Reason: reason}
}

// ValidationError は入力検証エラー。
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Is は ErrValidation との比較を可能にする。
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid は ValidationError を返す。
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError はリソース不在のエラー。
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// Is は ErrNotFound との比較を可能にする。
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NotFound は NotFoundError を返す。
func NotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// DenyReasonOf はエラーから拒否理由を取り出す。該当しない場合は空文字を返す。
func DenyReasonOf(err error) DenyReason {
	var denied *AccessDeniedError
	if errors.As(err, &denied) {
		return denied.Reason
	}
	return ""
}
