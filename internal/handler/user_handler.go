package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"secure-file-service/internal/domain"
	"secure-file-service/internal/middleware"
	"secure-file-service/internal/usecase"
	"secure-file-service/pkg/httputil"
)

// UserHandler は公開鍵ディレクトリAPIのハンドラ。
type UserHandler struct {
	service *usecase.UserService
}

// NewUserHandler は新しいUserHandlerを生成する。
func NewUserHandler(service *usecase.UserService) *UserHandler {
	return &UserHandler{service: service}
}

// RegisterKeyRequest は公開鍵登録のリクエスト。username を省略するとトークンの値を使う。
type RegisterKeyRequest struct {
	Username  string `json:"username"`
	PublicKey string `json:"public_key"`
	Algorithm string `json:"algorithm"`
}

// PublicKeyResponse は公開鍵のレスポンス。
type PublicKeyResponse struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	PublicKey string `json:"public_key"`
	Algorithm string `json:"algorithm"`
	UpdatedAt string `json:"updated_at"`
}

// UserResponse はユーザー検索結果。
type UserResponse struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Algorithm string `json:"algorithm"`
}

// RegisterKey は PUT /v1/users/me/key を処理する。
func (h *UserHandler) RegisterKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserID(ctx)

	var req RegisterKeyRequest
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteAuditLog(ctx, "REGISTER_KEY", "", userID, "FAILED")
		writeError(w, r, err)
		return
	}
	var d b64
	pub := d.decode("public_key", req.PublicKey)
	if d.err != nil {
		middleware.WriteAuditLog(ctx, "REGISTER_KEY", "", userID, "FAILED")
		writeError(w, r, d.err)
		return
	}
	username := req.Username
	if username == "" {
		username = middleware.Username(ctx)
	}

	user, err := h.service.RegisterPublicKey(ctx, userID, username, pub, domain.Algorithm(req.Algorithm))
	middleware.WriteAuditLog(ctx, "REGISTER_KEY", "", userID, result(err))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, toPublicKeyResponse(user))
}

// PublicKey は GET /v1/users/{user_id}/key を処理する。
func (h *UserHandler) PublicKey(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.PublicKey(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, toPublicKeyResponse(user))
}

// Search は GET /v1/users?q= を処理する。
func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	users, err := h.service.Search(ctx, r.URL.Query().Get("q"), middleware.UserID(ctx))
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := make([]UserResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, UserResponse{UserID: u.ID, Username: u.Username, Algorithm: string(u.Algorithm)})
	}
	httputil.JSON(w, http.StatusOK, resp)
}

func toPublicKeyResponse(u *domain.User) PublicKeyResponse {
	return PublicKeyResponse{
		UserID:    u.ID,
		Username:  u.Username,
		PublicKey: encode(u.PublicKey),
		Algorithm: string(u.Algorithm),
		UpdatedAt: u.UpdatedAt.Format(time.RFC3339),
	}
}
