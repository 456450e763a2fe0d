package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"fmt"

	"secure-file-service/internal/domain"
)

const rsaBits = 2048

type rsaCapability struct{}

// NewRSACapability はRSA-OAEP-2048/SHA-256による古典方式を返す。
func NewRSACapability() Capability {
	return rsaCapability{}
}

func (rsaCapability) Algorithm() domain.Algorithm {
	return domain.AlgorithmRSAOAEP
}

func (rsaCapability) GenerateKeyPair() ([]byte, []byte, error) {
	key, err := rsa.GenerateKey(rand.Reader, rsaBits)
	if err != nil {
		return nil, nil, fmt.Errorf("generate rsa key: %w", err)
	}
	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal public key: %w", err)
	}
	priv, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal private key: %w", err)
	}
	return pub, priv, nil
}

func parseRSAPublicKey(der []byte) (*rsa.PublicKey, error) {
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: rsa public key", domain.ErrKeyFormat)
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an rsa public key", domain.ErrKeyFormat)
	}
	return pub, nil
}

func (rsaCapability) ValidatePublicKey(publicKey []byte) error {
	_, err := parseRSAPublicKey(publicKey)
	return err
}

func (rsaCapability) Wrap(dataKey, publicKey []byte) ([]byte, error) {
	pub, err := parseRSAPublicKey(publicKey)
	if err != nil {
		return nil, err
	}
	out, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, dataKey, nil)
	if err != nil {
		return nil, fmt.Errorf("rsa-oaep encrypt: %w", err)
	}
	return out, nil
}

func (rsaCapability) Unwrap(body, privateKey []byte) ([]byte, error) {
	parsed, err := x509.ParsePKCS8PrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: rsa private key", domain.ErrKeyFormat)
	}
	priv, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an rsa private key", domain.ErrKeyFormat)
	}
	dataKey, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, body, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: rsa-oaep decrypt", domain.ErrKeyFormat)
	}
	return dataKey, nil
}
