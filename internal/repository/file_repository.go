// Package repository はデータアクセス層の実装を提供する。
package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"secure-file-service/internal/domain"
)

// FileModel はfilesテーブルのモデル。暗号文は file_blobs または S3 に置く。
type FileModel struct {
	ID          string    `gorm:"type:char(36);primaryKey"`
	OwnerID     string    `gorm:"type:varchar(64);not null;index:idx_files_owner"`
	Name        string    `gorm:"type:varchar(255);not null"`
	MimeType    string    `gorm:"type:varchar(255);not null"`
	Size        int64     `gorm:"not null"`
	IV          []byte    `gorm:"column:iv;type:varbinary(32);not null"`
	AuthTag     []byte    `gorm:"type:varbinary(32)"`
	WrappedKey  []byte    `gorm:"type:blob;not null"`
	Algorithm   string    `gorm:"type:varchar(32);not null"`
	IsHoneyfile bool      `gorm:"not null;default:false"`
	Triggered   bool      `gorm:"not null;default:false"`
	BlobRef     string    `gorm:"type:varchar(255);not null"`
	CreatedAt   time.Time `gorm:"type:datetime(6);not null;autoCreateTime"`
}

// TableName はテーブル名を返す。
func (FileModel) TableName() string {
	return "files"
}

func (m *FileModel) toDomain() *domain.EncryptedFile {
	return &domain.EncryptedFile{
		ID:         m.ID,
		OwnerID:    m.OwnerID,
		IV:         m.IV,
		AuthTag:    m.AuthTag,
		WrappedKey: m.WrappedKey,
		Algorithm:  domain.Algorithm(m.Algorithm),
		Metadata: domain.FileMetadata{
			Name:     m.Name,
			MimeType: m.MimeType,
			Size:     m.Size,
		},
		IsHoneyfile: m.IsHoneyfile,
		Triggered:   m.Triggered,
		BlobRef:     m.BlobRef,
		CreatedAt:   m.CreatedAt,
	}
}

func (m *FileModel) toSummary() *domain.FileSummary {
	return &domain.FileSummary{
		ID:      m.ID,
		OwnerID: m.OwnerID,
		Metadata: domain.FileMetadata{
			Name:     m.Name,
			MimeType: m.MimeType,
			Size:     m.Size,
		},
		IsHoneyfile: m.IsHoneyfile,
		CreatedAt:   m.CreatedAt,
	}
}

// KeyGrantModel はkey_grantsテーブルのモデル。
type KeyGrantModel struct {
	ID         string     `gorm:"type:char(36);primaryKey"`
	FileID     string     `gorm:"type:char(36);not null;uniqueIndex:uk_grant_file_grantee"`
	GranteeID  string     `gorm:"type:varchar(64);not null;uniqueIndex:uk_grant_file_grantee;index:idx_grants_grantee"`
	WrappedKey []byte     `gorm:"type:blob;not null"`
	Algorithm  string     `gorm:"type:varchar(32);not null"`
	Permission string     `gorm:"type:varchar(16);not null;default:'read'"`
	ExpiresAt  *time.Time `gorm:"type:datetime(6)"`
	GrantedAt  time.Time  `gorm:"type:datetime(6);not null;autoCreateTime"`
}

// TableName はテーブル名を返す。
func (KeyGrantModel) TableName() string {
	return "key_grants"
}

func (m *KeyGrantModel) toDomain() *domain.KeyGrant {
	return &domain.KeyGrant{
		ID:         m.ID,
		FileID:     m.FileID,
		GranteeID:  m.GranteeID,
		WrappedKey: m.WrappedKey,
		Algorithm:  domain.Algorithm(m.Algorithm),
		Permission: domain.Permission(m.Permission),
		ExpiresAt:  m.ExpiresAt,
		GrantedAt:  m.GrantedAt,
	}
}

// FileRepository はファイルと共有のデータアクセスを提供する。
type FileRepository struct {
	db *gorm.DB
}

// NewFileRepository は新しいFileRepositoryを生成する。
func NewFileRepository(db *gorm.DB) *FileRepository {
	return &FileRepository{db: db}
}

// CreateFile はファイルのメタデータとラップ鍵を保存する。
func (r *FileRepository) CreateFile(ctx context.Context, file *domain.EncryptedFile) error {
	model := &FileModel{
		ID:          file.ID,
		OwnerID:     file.OwnerID,
		Name:        file.Metadata.Name,
		MimeType:    file.Metadata.MimeType,
		Size:        file.Metadata.Size,
		IV:          file.IV,
		AuthTag:     file.AuthTag,
		WrappedKey:  file.WrappedKey,
		Algorithm:   string(file.Algorithm),
		IsHoneyfile: file.IsHoneyfile,
		BlobRef:     file.BlobRef,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		slog.ErrorContext(ctx, "failed to create file",
			"operation", "create_file",
			"file_id", file.ID,
			"owner_id", file.OwnerID,
			"error", err,
		)
		return err
	}
	file.CreatedAt = model.CreatedAt
	return nil
}

// FindFileByID はファイルを取得する。存在しない場合は nil を返す。
func (r *FileRepository) FindFileByID(ctx context.Context, id string) (*domain.EncryptedFile, error) {
	var model FileModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to find file",
			"operation", "find_file_by_id",
			"file_id", id,
			"error", err,
		)
		return nil, err
	}
	return model.toDomain(), nil
}

// DeleteFile はファイルと全ての共有を同一トランザクションで削除する。
func (r *FileRepository) DeleteFile(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("file_id = ?", id).Delete(&KeyGrantModel{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&FileModel{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to delete file",
			"operation", "delete_file",
			"file_id", id,
			"error", err,
		)
		return false, err
	}
	return deleted, nil
}

// FindFilesByOwner は所有ファイルを新しい順に取得する。
func (r *FileRepository) FindFilesByOwner(ctx context.Context, ownerID string) ([]*domain.FileSummary, error) {
	var models []FileModel
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to find files by owner",
			"operation", "find_files_by_owner",
			"owner_id", ownerID,
			"error", err,
		)
		return nil, err
	}
	return toSummaries(models), nil
}

// FindFilesSharedWith は共有されたファイルを共有日時の新しい順に取得する。
func (r *FileRepository) FindFilesSharedWith(ctx context.Context, granteeID string) ([]*domain.FileSummary, error) {
	var models []FileModel
	err := r.db.WithContext(ctx).
		Model(&FileModel{}).
		Select("files.*").
		Joins("JOIN key_grants ON key_grants.file_id = files.id").
		Where("key_grants.grantee_id = ?", granteeID).
		Order("key_grants.granted_at DESC").
		Find(&models).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to find shared files",
			"operation", "find_files_shared_with",
			"grantee_id", granteeID,
			"error", err,
		)
		return nil, err
	}
	return toSummaries(models), nil
}

func toSummaries(models []FileModel) []*domain.FileSummary {
	files := make([]*domain.FileSummary, len(models))
	for i := range models {
		files[i] = models[i].toSummary()
	}
	return files
}

// FindGrant は共有を取得する。存在しない場合は nil を返す。
func (r *FileRepository) FindGrant(ctx context.Context, fileID, granteeID string) (*domain.KeyGrant, error) {
	var model KeyGrantModel
	err := r.db.WithContext(ctx).
		Where("file_id = ? AND grantee_id = ?", fileID, granteeID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to find grant",
			"operation", "find_grant",
			"file_id", fileID,
			"grantee_id", granteeID,
			"error", err,
		)
		return nil, err
	}
	return model.toDomain(), nil
}

// FindGrantsByFileID はファイルの共有を共有日時の古い順に取得する。
func (r *FileRepository) FindGrantsByFileID(ctx context.Context, fileID string) ([]*domain.KeyGrant, error) {
	var models []KeyGrantModel
	err := r.db.WithContext(ctx).
		Where("file_id = ?", fileID).
		Order("granted_at ASC").
		Find(&models).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to find grants",
			"operation", "find_grants_by_file_id",
			"file_id", fileID,
			"error", err,
		)
		return nil, err
	}
	grants := make([]*domain.KeyGrant, len(models))
	for i := range models {
		grants[i] = models[i].toDomain()
	}
	return grants, nil
}

// CreateGrantIfAbsent は共有を作成する。(file_id, grantee_id) が既に存在する場合は何もせず false を返す。
func (r *FileRepository) CreateGrantIfAbsent(ctx context.Context, grant *domain.KeyGrant) (bool, error) {
	model := &KeyGrantModel{
		ID:         grant.ID,
		FileID:     grant.FileID,
		GranteeID:  grant.GranteeID,
		WrappedKey: grant.WrappedKey,
		Algorithm:  string(grant.Algorithm),
		Permission: string(grant.Permission),
		ExpiresAt:  grant.ExpiresAt,
		GrantedAt:  grant.GrantedAt,
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "file_id"}, {Name: "grantee_id"}},
			DoNothing: true,
		}).
		Create(model)
	if res.Error != nil {
		slog.ErrorContext(ctx, "failed to create grant",
			"operation", "create_grant_if_absent",
			"file_id", grant.FileID,
			"grantee_id", grant.GranteeID,
			"error", res.Error,
		)
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeleteGrant は共有を削除する。
func (r *FileRepository) DeleteGrant(ctx context.Context, fileID, granteeID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("file_id = ? AND grantee_id = ?", fileID, granteeID).
		Delete(&KeyGrantModel{})
	if res.Error != nil {
		slog.ErrorContext(ctx, "failed to delete grant",
			"operation", "delete_grant",
			"file_id", fileID,
			"grantee_id", granteeID,
			"error", res.Error,
		)
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkTriggered はハニーファイルを発火済みにする。
// 条件付き更新のため、並行する読み取りのうち true を返すのは最初の1件のみ。
func (r *FileRepository) MarkTriggered(ctx context.Context, fileID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&FileModel{}).
		Where("id = ? AND is_honeyfile = ? AND triggered = ?", fileID, true, false).
		Update("triggered", true)
	if res.Error != nil {
		slog.ErrorContext(ctx, "failed to mark honeyfile triggered",
			"operation", "mark_triggered",
			"file_id", fileID,
			"error", res.Error,
		)
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// CountHoneyfiles は所有者のハニーファイル数と発火済みの数を返す。
func (r *FileRepository) CountHoneyfiles(ctx context.Context, ownerID string) (int64, int64, error) {
	var total, sprung int64
	base := r.db.WithContext(ctx).
		Model(&FileModel{}).
		Where("owner_id = ? AND is_honeyfile = ?", ownerID, true).
		Session(&gorm.Session{})
	if err := base.Count(&total).Error; err != nil {
		slog.ErrorContext(ctx, "failed to count honeyfiles",
			"operation", "count_honeyfiles",
			"owner_id", ownerID,
			"error", err,
		)
		return 0, 0, err
	}
	if err := base.Where("triggered = ?", true).Count(&sprung).Error; err != nil {
		slog.ErrorContext(ctx, "failed to count triggered honeyfiles",
			"operation", "count_honeyfiles",
			"owner_id", ownerID,
			"error", err,
		)
		return 0, 0, err
	}
	return total, sprung, nil
}
