package repository

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/gorm"

	"secure-file-service/internal/domain"
)

// FileBlobModel はfile_blobsテーブルのモデル。
type FileBlobModel struct {
	ID   string `gorm:"type:char(36);primaryKey"`
	Data []byte `gorm:"type:longblob;not null"`
}

// TableName はテーブル名を返す。
func (FileBlobModel) TableName() string {
	return "file_blobs"
}

// BlobRepository は暗号文をデータベースに保存するBlobStore。
type BlobRepository struct {
	db *gorm.DB
}

// NewBlobRepository は新しいBlobRepositoryを生成する。
func NewBlobRepository(db *gorm.DB) *BlobRepository {
	return &BlobRepository{db: db}
}

// Put は暗号文を保存する。
func (r *BlobRepository) Put(ctx context.Context, ref string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	if err := r.db.WithContext(ctx).Create(&FileBlobModel{ID: ref, Data: data}).Error; err != nil {
		slog.ErrorContext(ctx, "failed to put blob",
			"operation", "put_blob",
			"ref", ref,
			"error", err,
		)
		return err
	}
	return nil
}

// Get は暗号文を取得する。
func (r *BlobRepository) Get(ctx context.Context, ref string) ([]byte, error) {
	var model FileBlobModel
	err := r.db.WithContext(ctx).Where("id = ?", ref).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NotFound("blob", ref)
		}
		slog.ErrorContext(ctx, "failed to get blob",
			"operation", "get_blob",
			"ref", ref,
			"error", err,
		)
		return nil, err
	}
	return model.Data, nil
}

// Delete は暗号文を削除する。存在しない場合もエラーにしない。
func (r *BlobRepository) Delete(ctx context.Context, ref string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", ref).Delete(&FileBlobModel{}).Error; err != nil {
		slog.ErrorContext(ctx, "failed to delete blob",
			"operation", "delete_blob",
			"ref", ref,
			"error", err,
		)
		return err
	}
	return nil
}
