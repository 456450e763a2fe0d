package usecase

import (
	"context"
	"fmt"
	"time"

	"secure-file-service/internal/domain"
)

// AccessControlManager は所有者・共有・有効期限・権限に基づいて操作を認可する。
type AccessControlManager struct {
	repo AccessRepository
	now  func() time.Time
}

// NewAccessControlManager は新しいAccessControlManagerを生成する。
func NewAccessControlManager(repo AccessRepository) *AccessControlManager {
	return &AccessControlManager{repo: repo, now: time.Now}
}

// Authorize は requesterID が fileID に対して action を行えるか判定する。
// 拒否時は理由付きの AccessDeniedError を返す。
func (m *AccessControlManager) Authorize(ctx context.Context, fileID, requesterID string, action domain.Action) error {
	switch action {
	case domain.ActionRead, domain.ActionWrite, domain.ActionShare:
	default:
		return domain.Invalid("action", fmt.Sprintf("unknown action %q", action))
	}

	file, err := m.repo.FindFileByID(ctx, fileID)
	if err != nil {
		return fmt.Errorf("finding file: %w", err)
	}
	if file == nil {
		return domain.NotFound("file", fileID)
	}
	if file.IsOwner(requesterID) {
		return nil
	}
	if action == domain.ActionShare {
		return domain.Denied(domain.ReasonNotOwner)
	}

	grant, err := m.repo.FindGrant(ctx, fileID, requesterID)
	if err != nil {
		return fmt.Errorf("finding grant: %w", err)
	}
	if grant == nil {
		return domain.Denied(domain.ReasonNoGrant)
	}
	if grant.Expired(m.now()) {
		return domain.Denied(domain.ReasonExpired)
	}
	if action == domain.ActionWrite && grant.Permission != domain.PermissionWrite {
		return domain.Denied(domain.ReasonInsufficientPermission)
	}
	return nil
}

// RequireOwner は所有者のみに許可された操作を認可する。
func (m *AccessControlManager) RequireOwner(ctx context.Context, fileID, requesterID string) error {
	return m.Authorize(ctx, fileID, requesterID, domain.ActionShare)
}
