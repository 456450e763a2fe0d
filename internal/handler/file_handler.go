// Package handler はHTTPハンドラを提供する。
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

// base64 展開分とJSONの余白
const uploadOverhead = 64 << 10

// FileHandler はファイル操作APIのハンドラ。
type FileHandler struct {
	service        *usecase.FileService
	maxUploadBytes int64
}

// NewFileHandler は新しいFileHandlerを生成する。
func NewFileHandler(service *usecase.FileService, maxUploadBytes int64) *FileHandler {
	return &FileHandler{service: service, maxUploadBytes: maxUploadBytes}
}

// UploadRequest はアップロードのリクエスト。バイナリはすべてbase64。
type UploadRequest struct {
	Ciphertext  string `json:"ciphertext"`
	IV          string `json:"iv"`
	AuthTag     string `json:"auth_tag"`
	WrappedKey  string `json:"wrapped_key"`
	Algorithm   string `json:"algorithm"`
	Name        string `json:"name"`
	MimeType    string `json:"mime_type"`
	Size        int64  `json:"size"`
	IsHoneyfile bool   `json:"is_honeyfile"`
}

// FileResponse はファイルのメタデータ。
type FileResponse struct {
	ID          string `json:"id"`
	OwnerID     string `json:"owner_id"`
	Name        string `json:"name"`
	MimeType    string `json:"mime_type"`
	Size        int64  `json:"size"`
	IsHoneyfile bool   `json:"is_honeyfile"`
	CreatedAt   string `json:"created_at"`
}

// DownloadResponse は暗号文と要求者向けラップ鍵。
type DownloadResponse struct {
	FileResponse
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	AuthTag    string `json:"auth_tag"`
	WrappedKey string `json:"wrapped_key"`
	Algorithm  string `json:"algorithm"`
}

// KeyResponse は要求者向けに解決されたラップ鍵。
type KeyResponse struct {
	FileID     string `json:"file_id"`
	WrappedKey string `json:"wrapped_key"`
	Algorithm  string `json:"algorithm"`
}

// ShareRequest は共有のリクエスト。
type ShareRequest struct {
	GranteeID  string `json:"grantee_id"`
	WrappedKey string `json:"wrapped_key"`
	Algorithm  string `json:"algorithm"`
	Permission string `json:"permission"`
	ExpiresAt  string `json:"expires_at"`
}

// ShareResponse は共有の結果。Created が false の場合は既存の共有が維持されている。
type ShareResponse struct {
	FileID    string `json:"file_id"`
	GranteeID string `json:"grantee_id"`
	Created   bool   `json:"created"`
}

// GrantResponse は共有設定。ラップ鍵は含めない。
type GrantResponse struct {
	GranteeID  string  `json:"grantee_id"`
	Permission string  `json:"permission"`
	Algorithm  string  `json:"algorithm"`
	ExpiresAt  *string `json:"expires_at"`
	GrantedAt  string  `json:"granted_at"`
}

// EventResponse は監査イベント。
type EventResponse struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Action    string `json:"action"`
	FileID    string `json:"file_id,omitempty"`
	Detail    string `json:"detail"`
	Timestamp string `json:"timestamp"`
}

// HoneyfileStatsResponse はハニーファイルの統計。
type HoneyfileStatsResponse struct {
	Total    int64           `json:"total"`
	Sprung   int64           `json:"sprung"`
	Triggers []EventResponse `json:"triggers"`
}

// Upload は POST /v1/files を処理する。
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserID(ctx)

	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes*4/3+uploadOverhead)
	}

	var req UploadRequest
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteAuditLog(ctx, "UPLOAD", "", userID, "FAILED")
		writeError(w, r, err)
		return
	}

	var d b64
	in := usecase.StoreInput{
		OwnerID:    userID,
		Ciphertext: d.decode("ciphertext", req.Ciphertext),
		IV:         d.decode("iv", req.IV),
		AuthTag:    d.decode("auth_tag", req.AuthTag),
		WrappedKey: d.decode("wrapped_key", req.WrappedKey),
		Algorithm:  domain.Algorithm(req.Algorithm),
		Metadata: domain.FileMetadata{
			Name:     req.Name,
			MimeType: req.MimeType,
			Size:     req.Size,
		},
		IsHoneyfile: req.IsHoneyfile,
	}
	if d.err != nil {
		middleware.WriteAuditLog(ctx, "UPLOAD", "", userID, "FAILED")
		writeError(w, r, d.err)
		return
	}
	if h.maxUploadBytes > 0 && int64(len(in.Ciphertext)) > h.maxUploadBytes {
		middleware.WriteAuditLog(ctx, "UPLOAD", "", userID, "FAILED")
		httputil.Error(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "file exceeds upload limit")
		return
	}

	file, err := h.service.Upload(ctx, in)
	if err != nil {
		middleware.WriteAuditLog(ctx, "UPLOAD", "", userID, "FAILED")
		writeError(w, r, err)
		return
	}

	middleware.WriteAuditLog(ctx, "UPLOAD", file.ID, userID, "SUCCESS")
	httputil.JSON(w, http.StatusCreated, toFileResponse(file.ID, file.OwnerID, file.Metadata, file.IsHoneyfile, file.CreatedAt))
}

// List は GET /v1/files を処理する。
func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	files, err := h.service.ListOwned(ctx, middleware.UserID(ctx))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, toSummaries(files))
}

// ListShared は GET /v1/files/shared を処理する。
func (h *FileHandler) ListShared(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	files, err := h.service.ListShared(ctx, middleware.UserID(ctx))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, toSummaries(files))
}

// Download は GET /v1/files/{file_id} を処理する。
func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fileID := chi.URLParam(r, "file_id")
	userID := middleware.UserID(ctx)

	res, err := h.service.Download(ctx, fileID, userID)
	middleware.WriteAuditLog(ctx, "DOWNLOAD", fileID, userID, result(err))
	if err != nil {
		writeError(w, r, err)
		return
	}

	f := res.File
	httputil.JSON(w, http.StatusOK, DownloadResponse{
		FileResponse: toFileResponse(f.ID, f.OwnerID, f.Metadata, f.IsHoneyfile && f.IsOwner(userID), f.CreatedAt),
		Ciphertext:   encode(res.Ciphertext),
		IV:           encode(f.IV),
		AuthTag:      encode(f.AuthTag),
		WrappedKey:   encode(res.Key.WrappedKey),
		Algorithm:    string(res.Key.Algorithm),
	})
}

// Key は GET /v1/files/{file_id}/key を処理する。
func (h *FileHandler) Key(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fileID := chi.URLParam(r, "file_id")
	userID := middleware.UserID(ctx)

	key, err := h.service.ResolveKey(ctx, fileID, userID)
	middleware.WriteAuditLog(ctx, "RESOLVE_KEY", fileID, userID, result(err))
	if err != nil {
		writeError(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, KeyResponse{
		FileID:     key.FileID,
		WrappedKey: encode(key.WrappedKey),
		Algorithm:  string(key.Algorithm),
	})
}

// Delete は DELETE /v1/files/{file_id} を処理する。
func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fileID := chi.URLParam(r, "file_id")
	userID := middleware.UserID(ctx)

	err := h.service.Delete(ctx, fileID, userID)
	middleware.WriteAuditLog(ctx, "DELETE", fileID, userID, result(err))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Share は POST /v1/files/{file_id}/grants を処理する。
func (h *FileHandler) Share(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fileID := chi.URLParam(r, "file_id")
	userID := middleware.UserID(ctx)

	var req ShareRequest
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteAuditLog(ctx, "SHARE", fileID, userID, "FAILED")
		writeError(w, r, err)
		return
	}

	var d b64
	wrapped := d.decode("wrapped_key", req.WrappedKey)
	if d.err != nil {
		middleware.WriteAuditLog(ctx, "SHARE", fileID, userID, "FAILED")
		writeError(w, r, d.err)
		return
	}

	created, err := h.service.Share(ctx, usecase.ShareInput{
		FileID:      fileID,
		RequesterID: userID,
		GranteeID:   req.GranteeID,
		WrappedKey:  wrapped,
		Algorithm:   domain.Algorithm(req.Algorithm),
		Permission:  domain.Permission(req.Permission),
		ExpiresAt:   req.ExpiresAt,
	})
	middleware.WriteAuditLog(ctx, "SHARE", fileID, userID, result(err))
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httputil.JSON(w, status, ShareResponse{FileID: fileID, GranteeID: req.GranteeID, Created: created})
}

// ListGrants は GET /v1/files/{file_id}/grants を処理する。
func (h *FileHandler) ListGrants(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fileID := chi.URLParam(r, "file_id")

	grants, err := h.service.ListGrants(ctx, fileID, middleware.UserID(ctx))
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]GrantResponse, 0, len(grants))
	for _, g := range grants {
		gr := GrantResponse{
			GranteeID:  g.GranteeID,
			Permission: string(g.Permission),
			Algorithm:  string(g.Algorithm),
			GrantedAt:  g.GrantedAt.Format(time.RFC3339),
		}
		if g.ExpiresAt != nil {
			s := g.ExpiresAt.Format(time.RFC3339)
			gr.ExpiresAt = &s
		}
		resp = append(resp, gr)
	}
	httputil.JSON(w, http.StatusOK, resp)
}

// Revoke は DELETE /v1/files/{file_id}/grants/{grantee_id} を処理する。
func (h *FileHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fileID := chi.URLParam(r, "file_id")
	userID := middleware.UserID(ctx)

	err := h.service.Revoke(ctx, fileID, userID, chi.URLParam(r, "grantee_id"))
	middleware.WriteAuditLog(ctx, "REVOKE", fileID, userID, result(err))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HoneyfileStats は GET /v1/honeyfiles/stats を処理する。
func (h *FileHandler) HoneyfileStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := h.service.HoneyfileStats(ctx, middleware.UserID(ctx))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, HoneyfileStatsResponse{
		Total:    stats.Total,
		Sprung:   stats.Sprung,
		Triggers: toEvents(stats.Triggers),
	})
}

// Audit は GET /v1/audit を処理する。
func (h *FileHandler) Audit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	events, err := h.service.AuditForActor(ctx, middleware.UserID(ctx))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, toEvents(events))
}

// FileAudit は GET /v1/audit/files/{file_id} を処理する。
func (h *FileHandler) FileAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	events, err := h.service.AuditForFile(ctx, chi.URLParam(r, "file_id"), middleware.UserID(ctx))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, toEvents(events))
}

func toFileResponse(id, ownerID string, m domain.FileMetadata, honeyfile bool, createdAt time.Time) FileResponse {
	return FileResponse{
		ID:          id,
		OwnerID:     ownerID,
		Name:        m.Name,
		MimeType:    m.MimeType,
		Size:        m.Size,
		IsHoneyfile: honeyfile,
		CreatedAt:   createdAt.Format(time.RFC3339),
	}
}

func toSummaries(files []*domain.FileSummary) []FileResponse {
	resp := make([]FileResponse, 0, len(files))
	for _, f := range files {
		resp = append(resp, toFileResponse(f.ID, f.OwnerID, f.Metadata, f.IsHoneyfile, f.CreatedAt))
	}
	return resp
}

func toEvents(events []*domain.SecurityEvent) []EventResponse {
	resp := make([]EventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, EventResponse{
			ID:        e.ID,
			ActorID:   e.ActorID,
			Action:    string(e.Action),
			FileID:    e.FileID,
			Detail:    e.Detail,
			Timestamp: e.Timestamp.Format(time.RFC3339),
		})
	}
	return resp
}
