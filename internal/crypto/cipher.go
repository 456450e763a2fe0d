// Package crypto はファイル暗号化と鍵カプセル化を提供する。
// ここにある関数は状態を持たず、並行に呼び出してよい。
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"secure-file-service/internal/domain"
)

const (
	// IVSize はAES-GCMのナンス長。
	IVSize = 12
	// TagSize はAES-GCMの認証タグ長。
	TagSize = 16
)

// GenerateDataKey はAES-256のデータ鍵を生成する。
func GenerateDataKey() ([]byte, error) {
	key := make([]byte, domain.DataKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating data key: %w", err)
	}
	return key, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != domain.DataKeySize {
		return nil, fmt.Errorf("%w: data key must be %d bytes", domain.ErrKeyFormat, domain.DataKeySize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: new cipher", domain.ErrKeyFormat)
	}
	return cipher.NewGCM(block)
}

// Encrypt は平文をAES-256-GCMで暗号化する。IVは呼び出しごとに生成し、呼び出し側からは受け取らない。
func Encrypt(plaintext, key []byte) (ciphertext, iv, tag []byte, err error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, nil, nil, err
	}

	iv = make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, nil, fmt.Errorf("generate iv: %w", err)
	}

	sealed := gcm.Seal(nil, iv, plaintext, nil)
	split := len(sealed) - TagSize
	return sealed[:split], iv, sealed[split:], nil
}

// Decrypt はAES-256-GCMの暗号文を復号する。タグ検証に失敗した場合は何も返さない。
func Decrypt(ciphertext, key, iv, tag []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != IVSize {
		return nil, fmt.Errorf("%w: iv must be %d bytes", domain.ErrKeyFormat, IVSize)
	}
	if len(tag) != TagSize {
		return nil, domain.ErrAuthenticationFailure
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, domain.ErrAuthenticationFailure
	}
	return plaintext, nil
}
