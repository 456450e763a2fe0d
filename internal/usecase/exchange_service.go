package usecase

import (
	"context"

	"secure-file-service/internal/crypto"
	"secure-file-service/internal/domain"
)

// ExchangeResult は一時鍵を使った暗号化の結果。
type ExchangeResult struct {
	WrappedKey []byte
	Ciphertext []byte
	IV         []byte
	AuthTag    []byte
	Algorithm  domain.Algorithm
}

// ExchangeService は一時鍵ペアによるサーバー仲介の暗号化・復号を提供する。
type ExchangeService struct {
	kem   *crypto.KeyEncapsulationService
	store *crypto.EphemeralKeyStore
}

// NewExchangeService は新しいExchangeServiceを生成する。
func NewExchangeService(kem *crypto.KeyEncapsulationService, store *crypto.EphemeralKeyStore) *ExchangeService {
	return &ExchangeService{kem: kem, store: store}
}

// IssueKeyPair は一時鍵ペアを発行し、公開部分を返す。
func (s *ExchangeService) IssueKeyPair(ctx context.Context) (*crypto.EphemeralKey, error) {
	return s.store.Issue()
}

// Encrypt は新しいデータ鍵でメッセージを暗号化し、データ鍵を相手の公開鍵でラップする。
// keyID は有効な一時鍵でなければならない。
func (s *ExchangeService) Encrypt(ctx context.Context, keyID string, peerPublicKey []byte, message []byte) (*ExchangeResult, error) {
	_, alg, err := s.store.PrivateKey(keyID)
	if err != nil {
		return nil, err
	}

	dataKey, err := crypto.GenerateDataKey()
	if err != nil {
		return nil, err
	}
	wrapped, err := s.kem.Wrap(dataKey, peerPublicKey, alg)
	if err != nil {
		return nil, err
	}
	ciphertext, iv, tag, err := crypto.Encrypt(message, dataKey)
	if err != nil {
		return nil, err
	}
	return &ExchangeResult{
		WrappedKey: wrapped,
		Ciphertext: ciphertext,
		IV:         iv,
		AuthTag:    tag,
		Algorithm:  alg,
	}, nil
}

// Decrypt は一時鍵の秘密鍵でデータ鍵をアンラップし、暗号文を復号する。
func (s *ExchangeService) Decrypt(ctx context.Context, keyID string, wrappedKey, ciphertext, iv, tag []byte) ([]byte, error) {
	privateKey, alg, err := s.store.PrivateKey(keyID)
	if err != nil {
		return nil, err
	}
	dataKey, err := s.kem.Unwrap(wrappedKey, privateKey, alg)
	if err != nil {
		return nil, err
	}
	return crypto.Decrypt(ciphertext, dataKey, iv, tag)
}
