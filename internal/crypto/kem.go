package crypto

import (
	"fmt"

	"secure-file-service/internal/domain"
)

// ラップ鍵の先頭1バイトで方式を識別する。
var algorithmIDs = map[domain.Algorithm]byte{
	domain.AlgorithmMLKEM768: 0x01,
	domain.AlgorithmRSAOAEP:  0x02,
}

func algorithmFromID(id byte) (domain.Algorithm, bool) {
	for alg, b := range algorithmIDs {
		if b == id {
			return alg, true
		}
	}
	return "", false
}

// KeyPair は生成された鍵ペア。
type KeyPair struct {
	PublicKey  []byte
	PrivateKey []byte
	Algorithm  domain.Algorithm
}

// KeyEncapsulationService はデータ鍵のラップ・アンラップを提供する。
// 鍵生成に使う方式は起動時に注入された Capability で固定される。
type KeyEncapsulationService struct {
	primary      Capability
	capabilities map[domain.Algorithm]Capability
}

// NewKeyEncapsulationService は新しいKeyEncapsulationServiceを生成する。
// extra はアンラップ・ラップのみに使う追加の方式。
func NewKeyEncapsulationService(primary Capability, extra ...Capability) *KeyEncapsulationService {
	caps := map[domain.Algorithm]Capability{primary.Algorithm(): primary}
	for _, c := range extra {
		if _, ok := caps[c.Algorithm()]; !ok {
			caps[c.Algorithm()] = c
		}
	}
	return &KeyEncapsulationService{primary: primary, capabilities: caps}
}

// Algorithm はこのプロセスで鍵生成に使う方式を返す。
func (s *KeyEncapsulationService) Algorithm() domain.Algorithm {
	return s.primary.Algorithm()
}

// GenerateKeyPair は鍵ペアを生成する。
func (s *KeyEncapsulationService) GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := s.primary.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return &KeyPair{PublicKey: pub, PrivateKey: priv, Algorithm: s.primary.Algorithm()}, nil
}

func (s *KeyEncapsulationService) capability(alg domain.Algorithm) (Capability, error) {
	c, ok := s.capabilities[alg]
	if !ok {
		return nil, fmt.Errorf("%w: %q is not enabled", domain.ErrAlgorithmMismatch, alg)
	}
	return c, nil
}

// ValidatePublicKey は公開鍵が指定方式で解釈できるか確認する。
func (s *KeyEncapsulationService) ValidatePublicKey(publicKey []byte, alg domain.Algorithm) error {
	c, err := s.capability(alg)
	if err != nil {
		return err
	}
	return c.ValidatePublicKey(publicKey)
}

// Wrap はデータ鍵を受信者の公開鍵でラップする。
func (s *KeyEncapsulationService) Wrap(dataKey, recipientPublicKey []byte, alg domain.Algorithm) ([]byte, error) {
	if len(dataKey) != domain.DataKeySize {
		return nil, fmt.Errorf("%w: data key must be %d bytes", domain.ErrKeyFormat, domain.DataKeySize)
	}
	c, err := s.capability(alg)
	if err != nil {
		return nil, err
	}
	body, err := c.Wrap(dataKey, recipientPublicKey)
	if err != nil {
		return nil, err
	}
	return append([]byte{algorithmIDs[alg]}, body...), nil
}

// Unwrap はラップ鍵からデータ鍵を取り出す。ヘッダの方式と alg が異なる場合は ErrAlgorithmMismatch。
func (s *KeyEncapsulationService) Unwrap(wrappedKey, recipientPrivateKey []byte, alg domain.Algorithm) ([]byte, error) {
	if len(wrappedKey) < 2 {
		return nil, fmt.Errorf("%w: wrapped key too short", domain.ErrKeyFormat)
	}
	wrappedAlg, ok := algorithmFromID(wrappedKey[0])
	if !ok {
		return nil, fmt.Errorf("%w: unknown wrapped key header", domain.ErrKeyFormat)
	}
	if wrappedAlg != alg {
		return nil, fmt.Errorf("%w: wrapped with %s, unwrap requested %s", domain.ErrAlgorithmMismatch, wrappedAlg, alg)
	}
	c, err := s.capability(alg)
	if err != nil {
		return nil, err
	}
	dataKey, err := c.Unwrap(wrappedKey[1:], recipientPrivateKey)
	if err != nil {
		return nil, err
	}
	if len(dataKey) != domain.DataKeySize {
		return nil, fmt.Errorf("%w: unwrapped key has wrong length", domain.ErrKeyFormat)
	}
	return dataKey, nil
}

// WrappedAlgorithm はラップ鍵のヘッダから方式を読み取る。
func WrappedAlgorithm(wrappedKey []byte) (domain.Algorithm, error) {
	if len(wrappedKey) < 2 {
		return "", fmt.Errorf("%w: wrapped key too short", domain.ErrKeyFormat)
	}
	alg, ok := algorithmFromID(wrappedKey[0])
	if !ok {
		return "", fmt.Errorf("%w: unknown wrapped key header", domain.ErrKeyFormat)
	}
	return alg, nil
}
