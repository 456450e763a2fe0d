package usecase

import (
	"context"
	"log/slog"

	"secure-file-service/internal/domain"
)

// MaxHoneyfileTriggers は統計で返す発火イベントの上限。
const MaxHoneyfileTriggers = 50

// TripwireRepository はハニーファイルの状態を更新・集計するインターフェース。
type TripwireRepository interface {
	MarkTriggered(ctx context.Context, fileID string) (bool, error)
	CountHoneyfiles(ctx context.Context, ownerID string) (total, sprung int64, err error)
}

// HoneyfileTripwire は所有者以外によるハニーファイルの読み取りを検知する。
type HoneyfileTripwire struct {
	repo   TripwireRepository
	trail  *AuditTrail
	events AuditReader
}

// NewHoneyfileTripwire は新しいHoneyfileTripwireを生成する。
func NewHoneyfileTripwire(repo TripwireRepository, trail *AuditTrail, events AuditReader) *HoneyfileTripwire {
	return &HoneyfileTripwire{repo: repo, trail: trail, events: events}
}

// OnRead は読み取りを評価し、発火した場合は true を返す。
// 対象の読み取りごとにイベントを送出し、記録の失敗で読み取りは中断しない。
func (t *HoneyfileTripwire) OnRead(ctx context.Context, file *domain.EncryptedFile, requesterID string) bool {
	if !file.IsHoneyfile || file.IsOwner(requesterID) {
		return false
	}

	first, err := t.repo.MarkTriggered(ctx, file.ID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to mark honeyfile triggered",
			"operation", "honeyfile_on_read",
			"file_id", file.ID,
			"error", err,
		)
	} else {
		file.Triggered = true
	}

	detail := "Honeyfile accessed by non-owner"
	if first {
		detail += " (first trigger)"
	}
	t.trail.Emit(ctx, requesterID, domain.AuditHoneyfileTriggered, file.ID, detail)

	slog.WarnContext(ctx, "honeyfile triggered",
		"file_id", file.ID,
		"user_id", requesterID,
	)
	return true
}

// GetStats は所有者のハニーファイル統計と直近の発火イベント（新しい順）を返す。
func (t *HoneyfileTripwire) GetStats(ctx context.Context, ownerID string, limit int) (*domain.HoneyfileStats, error) {
	if limit <= 0 || limit > MaxHoneyfileTriggers {
		limit = MaxHoneyfileTriggers
	}
	total, sprung, err := t.repo.CountHoneyfiles(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	triggers, err := t.events.FindHoneyfileTriggers(ctx, ownerID, limit)
	if err != nil {
		return nil, err
	}
	return &domain.HoneyfileStats{Total: total, Sprung: sprung, Triggers: triggers}, nil
}
