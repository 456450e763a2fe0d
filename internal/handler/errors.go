package handler

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"secure-file-service/internal/domain"
	"secure-file-service/pkg/httputil"
)

var errInvalidEncoding = errors.New("invalid encoding")

// b64 は複数フィールドのbase64デコードで最初のエラーを保持する。
type b64 struct {
	err error
}

func (d *b64) decode(field, value string) []byte {
	if d.err != nil {
		return nil
	}
	b, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		d.err = fmt.Errorf("%w: %w", errInvalidEncoding, domain.Invalid(field, "must be standard base64"))
		return nil
	}
	return b
}

func encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// decodeJSON はリクエストボディをデコードする。
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		return domain.Invalid("body", "malformed JSON")
	}
	return nil
}

// writeError はエラーをHTTPステータスに変換して返す。暗号エラーの詳細は返さない。
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		httputil.Error(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body too large")
	case errors.Is(err, errInvalidEncoding):
		httputil.Error(w, http.StatusBadRequest, "INVALID_ENCODING", validationMessage(err))
	case errors.Is(err, domain.ErrValidation):
		httputil.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", validationMessage(err))
	case errors.Is(err, domain.ErrNotFound):
		httputil.Error(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, domain.ErrAccessDenied):
		httputil.Denied(w, string(domain.DenyReasonOf(err)))
	case errors.Is(err, domain.ErrAuthenticationFailure):
		httputil.Error(w, http.StatusUnprocessableEntity, "AUTHENTICATION_FAILURE", "ciphertext failed authentication")
	case errors.Is(err, domain.ErrAlgorithmMismatch):
		httputil.Error(w, http.StatusUnprocessableEntity, "ALGORITHM_MISMATCH", "wrapped key algorithm does not match")
	case errors.Is(err, domain.ErrKeyFormat):
		httputil.Error(w, http.StatusUnprocessableEntity, "INVALID_KEY", "key has an invalid format")
	case errors.Is(err, domain.ErrCrypto):
		httputil.Error(w, http.StatusUnprocessableEntity, "CRYPTO_ERROR", "cryptographic operation failed")
	default:
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

func validationMessage(err error) string {
	var v *domain.ValidationError
	if errors.As(err, &v) {
		if v.Field != "" {
			return v.Field + ": " + v.Message
		}
		return v.Message
	}
	return "invalid request"
}

func result(err error) string {
	if err != nil {
		return "FAILED"
	}
	return "SUCCESS"
}
