package repository

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"secure-file-service/internal/domain"
)

// UserModel はusersテーブルのモデル。
type UserModel struct {
	ID        string    `gorm:"type:varchar(64);primaryKey"`
	Username  string    `gorm:"type:varchar(128);not null;index:idx_users_username"`
	PublicKey []byte    `gorm:"type:blob;not null"`
	Algorithm string    `gorm:"type:varchar(32);not null"`
	CreatedAt time.Time `gorm:"type:datetime(6);not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:datetime(6);not null;autoUpdateTime"`
}

// TableName はテーブル名を返す。
func (UserModel) TableName() string {
	return "users"
}

func (m *UserModel) toDomain() *domain.User {
	return &domain.User{
		ID:        m.ID,
		Username:  m.Username,
		PublicKey: m.PublicKey,
		Algorithm: domain.Algorithm(m.Algorithm),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// UserRepository はユーザーの公開鍵ディレクトリへのアクセスを提供する。
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository は新しいUserRepositoryを生成する。
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert は公開鍵を登録し、既存の場合は更新する。
func (r *UserRepository) Upsert(ctx context.Context, user *domain.User) error {
	model := &UserModel{
		ID:        user.ID,
		Username:  user.Username,
		PublicKey: user.PublicKey,
		Algorithm: string(user.Algorithm),
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"username", "public_key", "algorithm", "updated_at"}),
		}).
		Create(model).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to upsert user",
			"operation", "upsert",
			"user_id", user.ID,
			"error", err,
		)
		return err
	}
	user.UpdatedAt = model.UpdatedAt
	return nil
}

// FindByID はユーザーを取得する。存在しない場合は nil を返す。
func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	var model UserModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to find user",
			"operation", "find_by_id",
			"user_id", id,
			"error", err,
		)
		return nil, err
	}
	return model.toDomain(), nil
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// Search はユーザー名の部分一致（大文字小文字を区別しない）で検索する。
func (r *UserRepository) Search(ctx context.Context, query, excludeID string, limit int) ([]*domain.User, error) {
	pattern := "%" + strings.ToLower(likeEscaper.Replace(query)) + "%"

	var models []UserModel
	err := r.db.WithContext(ctx).
		Where("LOWER(username) LIKE ? ESCAPE '!' AND id <> ?", pattern, excludeID).
		Order("username ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to search users",
			"operation", "search",
			"error", err,
		)
		return nil, err
	}
	users := make([]*domain.User, len(models))
	for i := range models {
		users[i] = models[i].toDomain()
	}
	return users, nil
}
