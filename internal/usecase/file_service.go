package usecase

import (
	"context"
	"fmt"
	"time"

	"secure-file-service/internal/domain"
)

// AuditQueryLimit は監査ログ参照の最大件数。
const AuditQueryLimit = 100

// DownloadResult はダウンロード結果。
type DownloadResult struct {
	File       *domain.EncryptedFile
	Ciphertext []byte
	Key        *domain.ResolvedKey
}

// ShareInput は共有の入力。ExpiresAt はISO-8601形式の文字列（空は無期限）。
type ShareInput struct {
	FileID      string
	RequesterID string
	GranteeID   string
	WrappedKey  []byte
	Algorithm   domain.Algorithm
	Permission  domain.Permission
	ExpiresAt   string
}

// FileService はファイルのアップロード・ダウンロード・共有の処理を組み立てる。
type FileService struct {
	vault    *FileVault
	acm      *AccessControlManager
	tripwire *HoneyfileTripwire
	trail    *AuditTrail
	users    UserRepository
	events   AuditReader
}

// NewFileService は新しいFileServiceを生成する。
func NewFileService(
	vault *FileVault,
	acm *AccessControlManager,
	tripwire *HoneyfileTripwire,
	trail *AuditTrail,
	users UserRepository,
	events AuditReader,
) *FileService {
	return &FileService{
		vault:    vault,
		acm:      acm,
		tripwire: tripwire,
		trail:    trail,
		users:    users,
		events:   events,
	}
}

// authorize は認可を行い、拒否された場合は ACCESS イベントを送出する。
func (s *FileService) authorize(ctx context.Context, fileID, requesterID string, action domain.Action) error {
	err := s.acm.Authorize(ctx, fileID, requesterID, action)
	if reason := domain.DenyReasonOf(err); reason != "" {
		s.trail.Emit(ctx, requesterID, domain.AuditAccess, fileID,
			fmt.Sprintf("Unauthorized %s attempt: %s", action, reason))
	}
	return err
}

// Upload は暗号化済みファイルを保存する。
func (s *FileService) Upload(ctx context.Context, in StoreInput) (*domain.EncryptedFile, error) {
	file, err := s.vault.Store(ctx, in)
	if err != nil {
		return nil, err
	}
	detail := fmt.Sprintf("Uploaded %s", file.Metadata.Name)
	if file.IsHoneyfile {
		detail += " (honeyfile)"
	}
	s.trail.Emit(ctx, in.OwnerID, domain.AuditUpload, file.ID, detail)
	return file, nil
}

// readable は読み取りの認可とハニーファイル判定を行う。
func (s *FileService) readable(ctx context.Context, fileID, requesterID string) (*domain.EncryptedFile, error) {
	if err := s.authorize(ctx, fileID, requesterID, domain.ActionRead); err != nil {
		return nil, err
	}
	file, err := s.vault.Get(ctx, fileID)
	if err != nil {
		return nil, err
	}
	s.tripwire.OnRead(ctx, file, requesterID)
	return file, nil
}

// Download は暗号文と要求者向けのラップ鍵を返す。
func (s *FileService) Download(ctx context.Context, fileID, requesterID string) (*DownloadResult, error) {
	file, err := s.readable(ctx, fileID, requesterID)
	if err != nil {
		return nil, err
	}
	key, err := s.vault.ResolveKeyFor(ctx, fileID, requesterID)
	if err != nil {
		return nil, err
	}
	ciphertext, err := s.vault.Ciphertext(ctx, file)
	if err != nil {
		return nil, err
	}

	s.trail.Emit(ctx, requesterID, domain.AuditDownload, fileID,
		fmt.Sprintf("Downloaded %s", file.Metadata.Name))
	return &DownloadResult{File: file, Ciphertext: ciphertext, Key: key}, nil
}

// ResolveKey は要求者向けのラップ鍵のみを返す。
func (s *FileService) ResolveKey(ctx context.Context, fileID, requesterID string) (*domain.ResolvedKey, error) {
	if _, err := s.readable(ctx, fileID, requesterID); err != nil {
		return nil, err
	}
	return s.vault.ResolveKeyFor(ctx, fileID, requesterID)
}

// Share は共有先のラップ鍵を登録する。既に共有済みの場合は false を返し、何も変更しない。
func (s *FileService) Share(ctx context.Context, in ShareInput) (bool, error) {
	// 入力の検証より先に所有者か確認する
	if err := s.authorize(ctx, in.FileID, in.RequesterID, domain.ActionShare); err != nil {
		return false, err
	}

	expiresAt, err := ParseExpiry(in.ExpiresAt)
	if err != nil {
		return false, err
	}
	if in.Permission == "" {
		in.Permission = domain.PermissionRead
	}
	if !in.Permission.Valid() {
		return false, domain.Invalid("permission", fmt.Sprintf("unsupported permission %q", in.Permission))
	}
	if len(in.WrappedKey) == 0 {
		return false, domain.Invalid("wrapped_key", "is required")
	}
	if in.GranteeID == "" {
		return false, domain.Invalid("grantee_id", "is required")
	}

	if in.GranteeID == in.RequesterID {
		return false, domain.Invalid("grantee_id", "cannot share with yourself")
	}

	grantee, err := s.users.FindByID(ctx, in.GranteeID)
	if err != nil {
		return false, fmt.Errorf("finding grantee: %w", err)
	}
	if grantee == nil {
		return false, domain.NotFound("user", in.GranteeID)
	}
	if grantee.Algorithm != in.Algorithm {
		return false, domain.Invalid("algorithm",
			fmt.Sprintf("grantee key is %s, not %s", grantee.Algorithm, in.Algorithm))
	}

	created, err := s.vault.AddGrant(ctx, GrantInput{
		FileID:     in.FileID,
		GranteeID:  in.GranteeID,
		WrappedKey: in.WrappedKey,
		Algorithm:  in.Algorithm,
		Permission: in.Permission,
		ExpiresAt:  expiresAt,
	})
	if err != nil {
		return false, err
	}
	if created {
		s.trail.Emit(ctx, in.RequesterID, domain.AuditShare, in.FileID,
			fmt.Sprintf("Shared with %s (%s)", grantee.Username, in.Permission))
	}
	return created, nil
}

// Revoke は共有を取り消す（所有者のみ）。
func (s *FileService) Revoke(ctx context.Context, fileID, requesterID, granteeID string) error {
	if err := s.authorize(ctx, fileID, requesterID, domain.ActionShare); err != nil {
		return err
	}
	if err := s.vault.RevokeGrant(ctx, fileID, granteeID); err != nil {
		return err
	}
	s.trail.Emit(ctx, requesterID, domain.AuditRevoke, fileID,
		fmt.Sprintf("Revoked access for %s", granteeID))
	return nil
}

// Delete はファイルを削除する（所有者または書き込み権限の共有先）。
func (s *FileService) Delete(ctx context.Context, fileID, requesterID string) error {
	if err := s.authorize(ctx, fileID, requesterID, domain.ActionWrite); err != nil {
		return err
	}
	if err := s.vault.Delete(ctx, fileID); err != nil {
		return err
	}
	s.trail.Emit(ctx, requesterID, domain.AuditDelete, fileID, "Deleted file")
	return nil
}

// ListOwned は所有ファイルの一覧を返す。
func (s *FileService) ListOwned(ctx context.Context, ownerID string) ([]*domain.FileSummary, error) {
	return s.vault.ListOwned(ctx, ownerID)
}

// ListShared は共有されたファイルの一覧を返す。
func (s *FileService) ListShared(ctx context.Context, granteeID string) ([]*domain.FileSummary, error) {
	return s.vault.ListShared(ctx, granteeID)
}

// ListGrants は共有の一覧を返す（所有者のみ）。
func (s *FileService) ListGrants(ctx context.Context, fileID, requesterID string) ([]*domain.KeyGrant, error) {
	if err := s.acm.RequireOwner(ctx, fileID, requesterID); err != nil {
		return nil, err
	}
	return s.vault.Grants(ctx, fileID)
}

// HoneyfileStats は所有者のハニーファイル統計を返す。
func (s *FileService) HoneyfileStats(ctx context.Context, ownerID string) (*domain.HoneyfileStats, error) {
	return s.tripwire.GetStats(ctx, ownerID, MaxHoneyfileTriggers)
}

// AuditForActor は操作者自身の監査ログを返す。
func (s *FileService) AuditForActor(ctx context.Context, actorID string) ([]*domain.SecurityEvent, error) {
	events, err := s.events.FindByActor(ctx, actorID, AuditQueryLimit)
	if err != nil {
		return nil, fmt.Errorf("finding audit logs: %w", err)
	}
	return events, nil
}

// AuditForFile はファイルの監査ログを返す（所有者のみ）。
func (s *FileService) AuditForFile(ctx context.Context, fileID, requesterID string) ([]*domain.SecurityEvent, error) {
	if err := s.acm.RequireOwner(ctx, fileID, requesterID); err != nil {
		return nil, err
	}
	events, err := s.events.FindByFile(ctx, fileID, AuditQueryLimit)
	if err != nil {
		return nil, fmt.Errorf("finding audit logs: %w", err)
	}
	return events, nil
}

var expiryLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseExpiry は共有の有効期限を解析する。タイムゾーンのない値はUTCとして扱う。
// 過去の日時も受け付ける（即時に期限切れとなる）。
func ParseExpiry(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, domain.Invalid("expires_at", "must be an ISO-8601 timestamp")
}
