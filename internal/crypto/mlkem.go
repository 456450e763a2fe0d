package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"secure-file-service/internal/domain"
)

const wrapInfo = "secure-file-service/wrap"

type mlkemCapability struct {
	scheme kem.Scheme
}

// NewMLKEMCapability はML-KEM-768による方式を返す。
func NewMLKEMCapability() Capability {
	return &mlkemCapability{scheme: mlkem768.Scheme()}
}

func (c *mlkemCapability) Algorithm() domain.Algorithm {
	return domain.AlgorithmMLKEM768
}

func (c *mlkemCapability) GenerateKeyPair() ([]byte, []byte, error) {
	pk, sk, err := c.scheme.GenerateKeyPair()
	if err != nil {
		return nil, nil, fmt.Errorf("generate ml-kem key pair: %w", err)
	}
	pub, err := pk.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("marshal public key: %w", err)
	}
	priv, err := sk.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("marshal private key: %w", err)
	}
	return pub, priv, nil
}

func (c *mlkemCapability) ValidatePublicKey(publicKey []byte) error {
	if _, err := c.scheme.UnmarshalBinaryPublicKey(publicKey); err != nil {
		return fmt.Errorf("%w: ml-kem public key", domain.ErrKeyFormat)
	}
	return nil
}

// deriveKEK は共有秘密からKEMの出力長に依存しない32バイトの鍵を導出する。
func deriveKEK(sharedSecret []byte) ([]byte, error) {
	kek := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, sharedSecret, nil, []byte(wrapInfo)), kek); err != nil {
		return nil, fmt.Errorf("derive kek: %w", err)
	}
	return kek, nil
}

// Wrap の出力: kemCiphertext || nonce || XChaCha20-Poly1305(dataKey)
func (c *mlkemCapability) Wrap(dataKey, publicKey []byte) ([]byte, error) {
	pk, err := c.scheme.UnmarshalBinaryPublicKey(publicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: ml-kem public key", domain.ErrKeyFormat)
	}
	ct, ss, err := c.scheme.Encapsulate(pk)
	if err != nil {
		return nil, fmt.Errorf("encapsulate: %w", err)
	}
	kek, err := deriveKEK(ss)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(kek)
	if err != nil {
		return nil, fmt.Errorf("new xchacha20poly1305: %w", err)
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, 0, len(ct)+len(nonce)+len(dataKey)+aead.Overhead())
	out = append(out, ct...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, dataKey, nil), nil
}

func (c *mlkemCapability) Unwrap(body, privateKey []byte) ([]byte, error) {
	sk, err := c.scheme.UnmarshalBinaryPrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: ml-kem private key", domain.ErrKeyFormat)
	}
	ctSize := c.scheme.CiphertextSize()
	if len(body) < ctSize+chacha20poly1305.NonceSizeX+chacha20poly1305.Overhead {
		return nil, fmt.Errorf("%w: wrapped key too short", domain.ErrKeyFormat)
	}

	ss, err := c.scheme.Decapsulate(sk, body[:ctSize])
	if err != nil {
		return nil, fmt.Errorf("%w: decapsulate", domain.ErrKeyFormat)
	}
	kek, err := deriveKEK(ss)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(kek)
	if err != nil {
		return nil, fmt.Errorf("new xchacha20poly1305: %w", err)
	}

	nonce := body[ctSize : ctSize+chacha20poly1305.NonceSizeX]
	dataKey, err := aead.Open(nil, nonce, body[ctSize+chacha20poly1305.NonceSizeX:], nil)
	if err != nil {
		// ML-KEMの暗黙的拒否により、鍵違いもここで検出される
		return nil, domain.ErrAuthenticationFailure
	}
	return dataKey, nil
}
