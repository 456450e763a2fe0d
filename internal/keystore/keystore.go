// Package keystore はクライアント側の秘密鍵をパスフレーズで保護して保存する。
// 鍵導出は Argon2id、暗号化は NaCl secretbox を使う。
package keystore

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"

	"secure-file-service/internal/crypto"
	"secure-file-service/internal/domain"
)

const (
	fileVersion = 1
	saltLen     = 16
	nonceLen    = 24
)

var (
	// ErrWrongPassphrase はパスフレーズが一致しない、またはファイルが改ざんされている場合のエラー。
	ErrWrongPassphrase = errors.New("wrong passphrase or corrupted key file")

	// ErrUnsupportedVersion は未対応の鍵ファイル形式の場合のエラー。
	ErrUnsupportedVersion = errors.New("unsupported key file version")
)

type kdfParams struct {
	time    uint32
	memory  uint32 // KiB
	threads uint8
}

var defaultParams = kdfParams{time: 3, memory: 64 * 1024, threads: 4}

// KeyFile は保存される鍵ファイルの内容。秘密鍵は暗号化されている。
type KeyFile struct {
	Version    int              `json:"version"`
	UserID     string           `json:"user_id"`
	Algorithm  domain.Algorithm `json:"algorithm"`
	PublicKey  []byte           `json:"public_key"`
	Salt       []byte           `json:"salt"`
	Time       uint32           `json:"argon2_time"`
	Memory     uint32           `json:"argon2_memory"`
	Threads    uint8            `json:"argon2_threads"`
	PrivateKey []byte           `json:"sealed_private_key"`
}

func deriveKey(passphrase, salt []byte, p kdfParams) *[32]byte {
	var key [32]byte
	copy(key[:], argon2.IDKey(passphrase, salt, p.time, p.memory, p.threads, 32))
	return &key
}

// Seal は鍵ペアの秘密鍵をパスフレーズで暗号化した KeyFile を返す。
func Seal(pair *crypto.KeyPair, userID string, passphrase []byte) (*KeyFile, error) {
	if len(passphrase) == 0 {
		return nil, domain.Invalid("passphrase", "is required")
	}
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	var nonce [nonceLen]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	p := defaultParams
	key := deriveKey(passphrase, salt, p)
	return &KeyFile{
		Version:    fileVersion,
		UserID:     userID,
		Algorithm:  pair.Algorithm,
		PublicKey:  pair.PublicKey,
		Salt:       salt,
		Time:       p.time,
		Memory:     p.memory,
		Threads:    p.threads,
		PrivateKey: secretbox.Seal(nonce[:], pair.PrivateKey, &nonce, key),
	}, nil
}

// Open は秘密鍵を復号する。
func (k *KeyFile) Open(passphrase []byte) ([]byte, error) {
	if k.Version != fileVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, k.Version)
	}
	if len(k.PrivateKey) < nonceLen+secretbox.Overhead {
		return nil, ErrWrongPassphrase
	}
	var nonce [nonceLen]byte
	copy(nonce[:], k.PrivateKey[:nonceLen])

	key := deriveKey(passphrase, k.Salt, kdfParams{time: k.Time, memory: k.Memory, threads: k.Threads})
	plain, ok := secretbox.Open(nil, k.PrivateKey[nonceLen:], &nonce, key)
	if !ok {
		return nil, ErrWrongPassphrase
	}
	return plain, nil
}

// Save は鍵ファイルを所有者のみ読み書きできる権限で書き出す。
func Save(path string, k *KeyFile) error {
	data, err := json.MarshalIndent(k, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating key directory: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// Load は鍵ファイルを読み込む。
func Load(path string) (*KeyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var k KeyFile
	if err := json.Unmarshal(data, &k); err != nil {
		return nil, fmt.Errorf("parsing key file %s: %w", path, err)
	}
	return &k, nil
}

// DefaultPath はユーザーごとの既定の鍵ファイルの場所を返す。
func DefaultPath(userID string) (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "vaultctl", userID+".key.json"), nil
}
