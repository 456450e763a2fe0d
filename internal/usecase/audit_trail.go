package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"secure-file-service/internal/domain"
)

// AuditSink はセキュリティイベントの永続化先のインターフェース。
type AuditSink interface {
	Record(ctx context.Context, event *domain.SecurityEvent) error
}

// AuditReader は監査ログの参照インターフェース。
type AuditReader interface {
	FindByActor(ctx context.Context, actorID string, limit int) ([]*domain.SecurityEvent, error)
	FindByFile(ctx context.Context, fileID string, limit int) ([]*domain.SecurityEvent, error)
	FindHoneyfileTriggers(ctx context.Context, ownerID string, limit int) ([]*domain.SecurityEvent, error)
}

// AuditTrail はセキュリティイベントを送出する。
// 記録の失敗は呼び出し元の処理を中断させない。
type AuditTrail struct {
	sink AuditSink
	now  func() time.Time
}

// NewAuditTrail は新しいAuditTrailを生成する。
func NewAuditTrail(sink AuditSink) *AuditTrail {
	return &AuditTrail{sink: sink, now: time.Now}
}

// Emit はイベントを記録する。
func (a *AuditTrail) Emit(ctx context.Context, actorID string, action domain.AuditAction, fileID, detail string) {
	event := &domain.SecurityEvent{
		ID:        uuid.NewString(),
		ActorID:   actorID,
		Action:    action,
		FileID:    fileID,
		Detail:    detail,
		Timestamp: a.now().UTC(),
	}
	if err := a.sink.Record(ctx, event); err != nil {
		slog.WarnContext(ctx, "failed to record security event",
			"operation", "emit_security_event",
			"action", action,
			"file_id", fileID,
			"error", err,
		)
	}
}
