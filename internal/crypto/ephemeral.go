package crypto

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"secure-file-service/internal/domain"
)

// DefaultEphemeralTTL は一時鍵の保持期間。
const DefaultEphemeralTTL = 5 * time.Minute

type ephemeralRecord struct {
	publicKey  []byte
	privateKey []byte
	algorithm  domain.Algorithm
	createdAt  time.Time
}

// EphemeralKey は一時鍵ペアのうち公開してよい部分。
type EphemeralKey struct {
	KeyID     string
	PublicKey []byte
	Algorithm domain.Algorithm
	CreatedAt time.Time
}

// EphemeralKeyStore は一時鍵ペアを期限付きで保持する。
// 期限切れの掃除は新規発行時に行い、タイマーは使わない。
type EphemeralKeyStore struct {
	kem *KeyEncapsulationService
	ttl time.Duration
	now func() time.Time

	mu   sync.Mutex
	keys map[string]ephemeralRecord
}

// EphemeralOption はEphemeralKeyStoreの設定を変更する。
type EphemeralOption func(*EphemeralKeyStore)

// WithClock は現在時刻の取得関数を差し替える。
func WithClock(now func() time.Time) EphemeralOption {
	return func(s *EphemeralKeyStore) { s.now = now }
}

// NewEphemeralKeyStore は新しいEphemeralKeyStoreを生成する。
func NewEphemeralKeyStore(kem *KeyEncapsulationService, ttl time.Duration, opts ...EphemeralOption) *EphemeralKeyStore {
	if ttl <= 0 {
		ttl = DefaultEphemeralTTL
	}
	s := &EphemeralKeyStore{
		kem:  kem,
		ttl:  ttl,
		now:  time.Now,
		keys: make(map[string]ephemeralRecord),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue は一時鍵ペアを生成・保存し、期限切れのエントリを掃除する。
func (s *EphemeralKeyStore) Issue() (*EphemeralKey, error) {
	pair, err := s.kem.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	keyID := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, rec := range s.keys {
		if now.Sub(rec.createdAt) > s.ttl {
			delete(s.keys, id)
		}
	}
	s.keys[keyID] = ephemeralRecord{
		publicKey:  pair.PublicKey,
		privateKey: pair.PrivateKey,
		algorithm:  pair.Algorithm,
		createdAt:  now,
	}

	return &EphemeralKey{
		KeyID:     keyID,
		PublicKey: pair.PublicKey,
		Algorithm: pair.Algorithm,
		CreatedAt: now,
	}, nil
}

// PrivateKey は keyID に対応する秘密鍵を返す。期限切れの場合は存在しないものとして扱う。
func (s *EphemeralKeyStore) PrivateKey(keyID string) ([]byte, domain.Algorithm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.keys[keyID]
	if !ok || s.now().Sub(rec.createdAt) > s.ttl {
		return nil, "", domain.NotFound("ephemeral key", keyID)
	}
	return rec.privateKey, rec.algorithm, nil
}

// Len は保持中のエントリ数を返す（期限切れで未掃除のものを含む）。
func (s *EphemeralKeyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}
