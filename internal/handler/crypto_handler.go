package handler

import (
	"net/http"
	"time"

	"secure-file-service/internal/middleware"
	"secure-file-service/internal/usecase"
	"secure-file-service/pkg/httputil"
)

// CryptoHandler は一時鍵による鍵交換APIのハンドラ。
type CryptoHandler struct {
	service *usecase.ExchangeService
}

// NewCryptoHandler は新しいCryptoHandlerを生成する。
func NewCryptoHandler(service *usecase.ExchangeService) *CryptoHandler {
	return &CryptoHandler{service: service}
}

// KeyPairResponse は発行した一時鍵の公開部分。
type KeyPairResponse struct {
	KeyID     string `json:"key_id"`
	PublicKey string `json:"public_key"`
	Algorithm string `json:"algorithm"`
	CreatedAt string `json:"created_at"`
}

// EncryptRequest は一時鍵を使った暗号化のリクエスト。
type EncryptRequest struct {
	KeyID         string `json:"key_id"`
	PeerPublicKey string `json:"peer_public_key"`
	Message       string `json:"message"`
}

// EncryptResponse は暗号化結果。
type EncryptResponse struct {
	WrappedKey string `json:"wrapped_key"`
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	AuthTag    string `json:"auth_tag"`
	Algorithm  string `json:"algorithm"`
}

// DecryptRequest は一時鍵を使った復号のリクエスト。
type DecryptRequest struct {
	KeyID      string `json:"key_id"`
	WrappedKey string `json:"wrapped_key"`
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	AuthTag    string `json:"auth_tag"`
}

// DecryptResponse は復号結果。
type DecryptResponse struct {
	Message string `json:"message"`
}

// IssueKeyPair は POST /v1/crypto/keypair を処理する。
func (h *CryptoHandler) IssueKeyPair(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key, err := h.service.IssueKeyPair(ctx)
	middleware.WriteAuditLog(ctx, "ISSUE_KEYPAIR", "", middleware.UserID(ctx), result(err))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusCreated, KeyPairResponse{
		KeyID:     key.KeyID,
		PublicKey: encode(key.PublicKey),
		Algorithm: string(key.Algorithm),
		CreatedAt: key.CreatedAt.Format(time.RFC3339),
	})
}

// Encrypt は POST /v1/crypto/encrypt を処理する。
func (h *CryptoHandler) Encrypt(w http.ResponseWriter, r *http.Request) {
	var req EncryptRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	var d b64
	peer := d.decode("peer_public_key", req.PeerPublicKey)
	msg := d.decode("message", req.Message)
	if d.err != nil {
		writeError(w, r, d.err)
		return
	}

	res, err := h.service.Encrypt(r.Context(), req.KeyID, peer, msg)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, EncryptResponse{
		WrappedKey: encode(res.WrappedKey),
		Ciphertext: encode(res.Ciphertext),
		IV:         encode(res.IV),
		AuthTag:    encode(res.AuthTag),
		Algorithm:  string(res.Algorithm),
	})
}

// Decrypt は POST /v1/crypto/decrypt を処理する。
func (h *CryptoHandler) Decrypt(w http.ResponseWriter, r *http.Request) {
	var req DecryptRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	var d b64
	wrapped := d.decode("wrapped_key", req.WrappedKey)
	ct := d.decode("ciphertext", req.Ciphertext)
	iv := d.decode("iv", req.IV)
	tag := d.decode("auth_tag", req.AuthTag)
	if d.err != nil {
		writeError(w, r, d.err)
		return
	}

	msg, err := h.service.Decrypt(r.Context(), req.KeyID, wrapped, ct, iv, tag)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, DecryptResponse{Message: encode(msg)})
}
