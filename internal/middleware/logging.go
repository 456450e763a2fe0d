// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"time"
)

// WriteAuditLog はリクエスト単位の操作ログを出力する。鍵や平文は渡さないこと。
func WriteAuditLog(ctx context.Context, operation, fileID, userID, result string) {
	slog.InfoContext(ctx, "file operation completed",
		"operation", operation,
		"file_id", fileID,
		"user_id", userID,
		"result", result,
		"timestamp", time.Now().UTC().Format(time.RFC3339),
	)
}
