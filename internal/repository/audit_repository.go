package repository

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"secure-file-service/internal/domain"
)

// AuditLogModel はaudit_logsテーブルのモデル。
type AuditLogModel struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	ActorID   string    `gorm:"type:varchar(64);not null;default:'';index:idx_audit_actor_created"`
	Action    string    `gorm:"type:varchar(32);not null;index:idx_audit_action"`
	FileID    string    `gorm:"type:varchar(36);not null;default:'';index:idx_audit_file_created"`
	Detail    string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"type:datetime(6);not null;index:idx_audit_actor_created;index:idx_audit_file_created"`
}

// TableName はテーブル名を返す。
func (AuditLogModel) TableName() string {
	return "audit_logs"
}

func (m *AuditLogModel) toDomain() *domain.SecurityEvent {
	return &domain.SecurityEvent{
		ID:        m.ID,
		ActorID:   m.ActorID,
		Action:    domain.AuditAction(m.Action),
		FileID:    m.FileID,
		Detail:    m.Detail,
		Timestamp: m.CreatedAt,
	}
}

// AuditRepository はセキュリティイベントの永続化を提供する。
type AuditRepository struct {
	db *gorm.DB
}

// NewAuditRepository は新しいAuditRepositoryを生成する。
func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Record はイベントを保存する。
func (r *AuditRepository) Record(ctx context.Context, event *domain.SecurityEvent) error {
	model := &AuditLogModel{
		ID:        event.ID,
		ActorID:   event.ActorID,
		Action:    string(event.Action),
		FileID:    event.FileID,
		Detail:    event.Detail,
		CreatedAt: event.Timestamp.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		slog.ErrorContext(ctx, "failed to record audit log",
			"operation", "record",
			"action", event.Action,
			"file_id", event.FileID,
			"error", err,
		)
		return err
	}
	return nil
}

func (r *AuditRepository) find(ctx context.Context, operation string, limit int, scope func(*gorm.DB) *gorm.DB) ([]*domain.SecurityEvent, error) {
	var models []AuditLogModel
	err := r.db.WithContext(ctx).
		Scopes(scope).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to find audit logs",
			"operation", operation,
			"error", err,
		)
		return nil, err
	}
	events := make([]*domain.SecurityEvent, len(models))
	for i := range models {
		events[i] = models[i].toDomain()
	}
	return events, nil
}

// FindByActor は操作者のイベントを新しい順に取得する。
// ハニーファイルの発火イベントは所有者向けの参照でのみ返し、操作者本人には見せない。
func (r *AuditRepository) FindByActor(ctx context.Context, actorID string, limit int) ([]*domain.SecurityEvent, error) {
	return r.find(ctx, "find_by_actor", limit, func(db *gorm.DB) *gorm.DB {
		return db.Where("actor_id = ? AND action <> ?", actorID, string(domain.AuditHoneyfileTriggered))
	})
}

// FindByFile はファイルのイベントを新しい順に取得する。
func (r *AuditRepository) FindByFile(ctx context.Context, fileID string, limit int) ([]*domain.SecurityEvent, error) {
	return r.find(ctx, "find_by_file", limit, func(db *gorm.DB) *gorm.DB {
		return db.Where("file_id = ?", fileID)
	})
}

// FindHoneyfileTriggers は所有者のハニーファイルの発火イベントを新しい順に取得する。
func (r *AuditRepository) FindHoneyfileTriggers(ctx context.Context, ownerID string, limit int) ([]*domain.SecurityEvent, error) {
	honeyfiles := r.db.WithContext(ctx).
		Model(&FileModel{}).
		Select("id").
		Where("owner_id = ? AND is_honeyfile = ?", ownerID, true)

	return r.find(ctx, "find_honeyfile_triggers", limit, func(db *gorm.DB) *gorm.DB {
		return db.Where("action = ? AND file_id IN (?)", string(domain.AuditHoneyfileTriggered), honeyfiles)
	})
}
