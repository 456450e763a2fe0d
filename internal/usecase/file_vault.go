// Package usecase はアプリケーションのユースケースを実装する。
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"secure-file-service/internal/crypto"
	"secure-file-service/internal/domain"
)

// AccessRepository は認可判定に必要な参照インターフェース。
type AccessRepository interface {
	FindFileByID(ctx context.Context, id string) (*domain.EncryptedFile, error)
	FindGrant(ctx context.Context, fileID, granteeID string) (*domain.KeyGrant, error)
}

// FileRepository はファイルと共有のデータアクセスのインターフェース。
type FileRepository interface {
	AccessRepository
	CreateFile(ctx context.Context, file *domain.EncryptedFile) error
	DeleteFile(ctx context.Context, id string) (bool, error)
	FindFilesByOwner(ctx context.Context, ownerID string) ([]*domain.FileSummary, error)
	FindFilesSharedWith(ctx context.Context, granteeID string) ([]*domain.FileSummary, error)
	FindGrantsByFileID(ctx context.Context, fileID string) ([]*domain.KeyGrant, error)
	CreateGrantIfAbsent(ctx context.Context, grant *domain.KeyGrant) (bool, error)
	DeleteGrant(ctx context.Context, fileID, granteeID string) (bool, error)
	MarkTriggered(ctx context.Context, fileID string) (bool, error)
	CountHoneyfiles(ctx context.Context, ownerID string) (total, sprung int64, err error)
}

// BlobStore は暗号文の保存先のインターフェース。
type BlobStore interface {
	Put(ctx context.Context, ref string, data []byte) error
	Get(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, ref string) error
}

// KeySealer は保存するラップ鍵をさらに保護するインターフェース（Cloud KMS等）。
type KeySealer interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// StoreInput はファイル保存の入力。
type StoreInput struct {
	OwnerID     string
	Ciphertext  []byte
	IV          []byte
	AuthTag     []byte
	WrappedKey  []byte
	Algorithm   domain.Algorithm
	Metadata    domain.FileMetadata
	IsHoneyfile bool
}

// GrantInput は共有追加の入力。
type GrantInput struct {
	FileID     string
	GranteeID  string
	WrappedKey []byte
	Algorithm  domain.Algorithm
	Permission domain.Permission
	ExpiresAt  *time.Time
}

// FileVault は暗号化ファイルと共有先ごとのラップ鍵を管理する。
// 平文のデータ鍵は扱わない。
type FileVault struct {
	repo   FileRepository
	blobs  BlobStore
	sealer KeySealer
	locks  *keyedMutex
	now    func() time.Time
}

// NewFileVault は新しいFileVaultを生成する。
func NewFileVault(repo FileRepository, blobs BlobStore, sealer KeySealer) *FileVault {
	return &FileVault{
		repo:   repo,
		blobs:  blobs,
		sealer: sealer,
		locks:  newKeyedMutex(),
		now:    time.Now,
	}
}

func validateWrappedKey(field string, wrapped []byte, alg domain.Algorithm) error {
	if len(wrapped) == 0 {
		return domain.Invalid(field, "is required")
	}
	if !alg.Valid() {
		return domain.Invalid("algorithm", fmt.Sprintf("unsupported algorithm %q", alg))
	}
	header, err := crypto.WrappedAlgorithm(wrapped)
	if err != nil {
		return domain.Invalid(field, "is not a wrapped key")
	}
	if header != alg {
		return domain.Invalid(field, fmt.Sprintf("was wrapped with %s, not %s", header, alg))
	}
	return nil
}

// Store は暗号化ファイルを保存する。暗号文とラップ鍵はどちらか片方だけが残ることはない。
func (v *FileVault) Store(ctx context.Context, in StoreInput) (*domain.EncryptedFile, error) {
	if in.OwnerID == "" {
		return nil, domain.Invalid("owner_id", "is required")
	}
	if len(in.IV) == 0 {
		return nil, domain.Invalid("iv", "is required")
	}
	if err := validateWrappedKey("wrapped_key", in.WrappedKey, in.Algorithm); err != nil {
		return nil, err
	}

	sealed, err := v.sealer.Encrypt(ctx, in.WrappedKey)
	if err != nil {
		return nil, fmt.Errorf("sealing wrapped key: %w", err)
	}

	id := uuid.NewString()
	if err := v.blobs.Put(ctx, id, in.Ciphertext); err != nil {
		return nil, fmt.Errorf("storing ciphertext: %w", err)
	}

	file := &domain.EncryptedFile{
		ID:          id,
		OwnerID:     in.OwnerID,
		IV:          in.IV,
		AuthTag:     in.AuthTag,
		WrappedKey:  sealed,
		Algorithm:   in.Algorithm,
		Metadata:    in.Metadata,
		IsHoneyfile: in.IsHoneyfile,
		BlobRef:     id,
	}
	if err := v.repo.CreateFile(ctx, file); err != nil {
		if delErr := v.blobs.Delete(ctx, id); delErr != nil {
			slog.ErrorContext(ctx, "failed to roll back ciphertext",
				"operation", "store_file",
				"file_id", id,
				"error", delErr,
			)
		}
		return nil, fmt.Errorf("creating file: %w", err)
	}

	file.WrappedKey = in.WrappedKey
	file.Ciphertext = in.Ciphertext
	return file, nil
}

// Get はファイルのメタデータを取得する（暗号文は含まない）。
func (v *FileVault) Get(ctx context.Context, fileID string) (*domain.EncryptedFile, error) {
	file, err := v.repo.FindFileByID(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("finding file: %w", err)
	}
	if file == nil {
		return nil, domain.NotFound("file", fileID)
	}
	return file, nil
}

// Ciphertext はファイルの暗号文を取得する。
func (v *FileVault) Ciphertext(ctx context.Context, file *domain.EncryptedFile) ([]byte, error) {
	data, err := v.blobs.Get(ctx, file.BlobRef)
	if err != nil {
		return nil, fmt.Errorf("loading ciphertext: %w", err)
	}
	return data, nil
}

// AddGrant は共有先のラップ鍵を登録する。既に共有が存在する場合は何もしない（先勝ち）。
func (v *FileVault) AddGrant(ctx context.Context, in GrantInput) (bool, error) {
	if in.GranteeID == "" {
		return false, domain.Invalid("grantee_id", "is required")
	}
	if !in.Permission.Valid() {
		return false, domain.Invalid("permission", fmt.Sprintf("unsupported permission %q", in.Permission))
	}
	if err := validateWrappedKey("wrapped_key", in.WrappedKey, in.Algorithm); err != nil {
		return false, err
	}

	unlock := v.locks.Lock(in.FileID)
	defer unlock()

	if _, err := v.Get(ctx, in.FileID); err != nil {
		return false, err
	}

	sealed, err := v.sealer.Encrypt(ctx, in.WrappedKey)
	if err != nil {
		return false, fmt.Errorf("sealing wrapped key: %w", err)
	}

	grant := &domain.KeyGrant{
		ID:         uuid.NewString(),
		FileID:     in.FileID,
		GranteeID:  in.GranteeID,
		WrappedKey: sealed,
		Algorithm:  in.Algorithm,
		Permission: in.Permission,
		ExpiresAt:  in.ExpiresAt,
		GrantedAt:  v.now().UTC(),
	}
	created, err := v.repo.CreateGrantIfAbsent(ctx, grant)
	if err != nil {
		return false, fmt.Errorf("creating grant: %w", err)
	}
	return created, nil
}

// RevokeGrant は共有を削除する。取り消し前に復号された平文には影響しない。
func (v *FileVault) RevokeGrant(ctx context.Context, fileID, granteeID string) error {
	unlock := v.locks.Lock(fileID)
	defer unlock()

	deleted, err := v.repo.DeleteGrant(ctx, fileID, granteeID)
	if err != nil {
		return fmt.Errorf("deleting grant: %w", err)
	}
	if !deleted {
		return domain.NotFound("grant", granteeID)
	}
	return nil
}

// ResolveKeyFor は要求者に渡すラップ鍵を解決する。
// 共有の有効期限は解決時点の時刻で判定する。
func (v *FileVault) ResolveKeyFor(ctx context.Context, fileID, requesterID string) (*domain.ResolvedKey, error) {
	file, err := v.Get(ctx, fileID)
	if err != nil {
		return nil, err
	}

	sealed, alg := file.WrappedKey, file.Algorithm
	if !file.IsOwner(requesterID) {
		grant, err := v.repo.FindGrant(ctx, fileID, requesterID)
		if err != nil {
			return nil, fmt.Errorf("finding grant: %w", err)
		}
		if grant == nil || grant.Expired(v.now()) {
			return nil, domain.Denied(domain.ReasonNoGrant)
		}
		sealed, alg = grant.WrappedKey, grant.Algorithm
	}

	wrapped, err := v.sealer.Decrypt(ctx, sealed)
	if err != nil {
		return nil, fmt.Errorf("unsealing wrapped key: %w", err)
	}
	return &domain.ResolvedKey{FileID: fileID, WrappedKey: wrapped, Algorithm: alg}, nil
}

// Grants は共有の一覧を返す。ラップ鍵は含めない。
func (v *FileVault) Grants(ctx context.Context, fileID string) ([]*domain.KeyGrant, error) {
	grants, err := v.repo.FindGrantsByFileID(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("finding grants: %w", err)
	}
	for _, g := range grants {
		g.WrappedKey = nil
	}
	return grants, nil
}

// Delete はファイルと全ての共有を削除する。
func (v *FileVault) Delete(ctx context.Context, fileID string) error {
	unlock := v.locks.Lock(fileID)
	defer unlock()

	file, err := v.Get(ctx, fileID)
	if err != nil {
		return err
	}
	deleted, err := v.repo.DeleteFile(ctx, fileID)
	if err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	if !deleted {
		return domain.NotFound("file", fileID)
	}
	if err := v.blobs.Delete(ctx, file.BlobRef); err != nil {
		slog.WarnContext(ctx, "failed to delete ciphertext blob",
			"operation", "delete_file",
			"file_id", fileID,
			"error", err,
		)
	}
	return nil
}

// ListOwned は所有ファイルの一覧を返す。
func (v *FileVault) ListOwned(ctx context.Context, ownerID string) ([]*domain.FileSummary, error) {
	files, err := v.repo.FindFilesByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("finding owned files: %w", err)
	}
	return files, nil
}

// ListShared は共有されたファイルの一覧を返す。ハニーファイルかどうかは共有先に見せない。
func (v *FileVault) ListShared(ctx context.Context, granteeID string) ([]*domain.FileSummary, error) {
	files, err := v.repo.FindFilesSharedWith(ctx, granteeID)
	if err != nil {
		return nil, fmt.Errorf("finding shared files: %w", err)
	}
	for _, f := range files {
		f.IsHoneyfile = false
	}
	return files, nil
}
