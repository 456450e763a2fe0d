package usecase

import (
	"context"
	"fmt"
	"strings"

	"secure-file-service/internal/domain"
)

const (
	minSearchLength = 2
	maxSearchResult = 20
)

// UserRepository はユーザーの公開鍵ディレクトリのインターフェース。
type UserRepository interface {
	Upsert(ctx context.Context, user *domain.User) error
	FindByID(ctx context.Context, id string) (*domain.User, error)
	Search(ctx context.Context, query, excludeID string, limit int) ([]*domain.User, error)
}

// PublicKeyValidator は公開鍵が方式に対して妥当か検証する。
type PublicKeyValidator interface {
	ValidatePublicKey(publicKey []byte, alg domain.Algorithm) error
}

// UserService は公開鍵の登録と検索を提供する。
type UserService struct {
	repo      UserRepository
	validator PublicKeyValidator
}

// NewUserService は新しいUserServiceを生成する。
func NewUserService(repo UserRepository, validator PublicKeyValidator) *UserService {
	return &UserService{repo: repo, validator: validator}
}

// RegisterPublicKey はユーザーの公開鍵を登録・更新する。
func (s *UserService) RegisterPublicKey(ctx context.Context, userID, username string, publicKey []byte, alg domain.Algorithm) (*domain.User, error) {
	if userID == "" {
		return nil, domain.Invalid("user_id", "is required")
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, domain.Invalid("username", "is required")
	}
	if !alg.Valid() {
		return nil, domain.Invalid("algorithm", fmt.Sprintf("unsupported algorithm %q", alg))
	}
	if err := s.validator.ValidatePublicKey(publicKey, alg); err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:        userID,
		Username:  username,
		PublicKey: publicKey,
		Algorithm: alg,
	}
	if err := s.repo.Upsert(ctx, user); err != nil {
		return nil, fmt.Errorf("saving public key: %w", err)
	}
	return user, nil
}

// PublicKey はユーザーの公開鍵を返す。
func (s *UserService) PublicKey(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("finding user: %w", err)
	}
	if user == nil {
		return nil, domain.NotFound("user", userID)
	}
	return user, nil
}

// Search はユーザー名で検索する。要求者自身は結果に含めない。
func (s *UserService) Search(ctx context.Context, query, requesterID string) ([]*domain.User, error) {
	query = strings.TrimSpace(query)
	if len(query) < minSearchLength {
		return []*domain.User{}, nil
	}
	users, err := s.repo.Search(ctx, query, requesterID, maxSearchResult)
	if err != nil {
		return nil, fmt.Errorf("searching users: %w", err)
	}
	return users, nil
}
