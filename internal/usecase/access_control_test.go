package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"secure-file-service/internal/domain"
)

func TestAccessControlManager_Authorize(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	repo := newMemFileRepository()
	repo.files["f1"] = &domain.EncryptedFile{ID: "f1", OwnerID: "alice"}
	repo.grants[grantKey("f1", "reader")] = &domain.KeyGrant{FileID: "f1", GranteeID: "reader", Permission: domain.PermissionRead, ExpiresAt: &future}
	repo.grants[grantKey("f1", "writer")] = &domain.KeyGrant{FileID: "f1", GranteeID: "writer", Permission: domain.PermissionWrite}
	repo.grants[grantKey("f1", "expired")] = &domain.KeyGrant{FileID: "f1", GranteeID: "expired", Permission: domain.PermissionWrite, ExpiresAt: &past}

	acm := NewAccessControlManager(repo)
	acm.now = func() time.Time { return now }

	tests := []struct {
		name      string
		requester string
		action    domain.Action
		reason    domain.DenyReason
	}{
		{"owner read", "alice", domain.ActionRead, ""},
		{"owner write", "alice", domain.ActionWrite, ""},
		{"owner share", "alice", domain.ActionShare, ""},
		{"reader read", "reader", domain.ActionRead, ""},
		{"reader write", "reader", domain.ActionWrite, domain.ReasonInsufficientPermission},
		{"reader share", "reader", domain.ActionShare, domain.ReasonNotOwner},
		{"writer write", "writer", domain.ActionWrite, ""},
		{"writer share", "writer", domain.ActionShare, domain.ReasonNotOwner},
		{"expired read", "expired", domain.ActionRead, domain.ReasonExpired},
		{"stranger read", "mallory", domain.ActionRead, domain.ReasonNoGrant},
		{"stranger share", "mallory", domain.ActionShare, domain.ReasonNotOwner},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := acm.Authorize(ctx, "f1", tt.requester, tt.action)
			if tt.reason == "" {
				if err != nil {
					t.Errorf("want allowed, got %v", err)
				}
				return
			}
			if !errors.Is(err, domain.ErrAccessDenied) {
				t.Fatalf("want ErrAccessDenied, got %v", err)
			}
			if got := domain.DenyReasonOf(err); got != tt.reason {
				t.Errorf("want reason %s, got %s", tt.reason, got)
			}
		})
	}
}

func TestAccessControlManager_ExpiryBoundary(t *testing.T) {
	ctx := context.Background()
	expiry := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	now := expiry

	repo := newMemFileRepository()
	repo.files["f1"] = &domain.EncryptedFile{ID: "f1", OwnerID: "alice"}
	repo.grants[grantKey("f1", "bob")] = &domain.KeyGrant{FileID: "f1", GranteeID: "bob", Permission: domain.PermissionRead, ExpiresAt: &expiry}

	acm := NewAccessControlManager(repo)
	acm.now = func() time.Time { return now }

	if err := acm.Authorize(ctx, "f1", "bob", domain.ActionRead); err != nil {
		t.Errorf("at expiry instant: want allowed, got %v", err)
	}
	now = expiry.Add(time.Nanosecond)
	if got := domain.DenyReasonOf(acm.Authorize(ctx, "f1", "bob", domain.ActionRead)); got != domain.ReasonExpired {
		t.Errorf("after expiry: want expired, got %s", got)
	}
}

func TestAccessControlManager_Errors(t *testing.T) {
	ctx := context.Background()
	repo := newMemFileRepository()
	repo.files["f1"] = &domain.EncryptedFile{ID: "f1", OwnerID: "alice"}
	acm := NewAccessControlManager(repo)

	if err := acm.Authorize(ctx, "missing", "alice", domain.ActionRead); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
	if err := acm.Authorize(ctx, "f1", "alice", "admin"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("want ErrValidation, got %v", err)
	}
	if err := acm.RequireOwner(ctx, "f1", "bob"); domain.DenyReasonOf(err) != domain.ReasonNotOwner {
		t.Errorf("want not-owner, got %v", err)
	}
}
