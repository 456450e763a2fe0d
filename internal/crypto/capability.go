package crypto

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"secure-file-service/internal/domain"
)

// Capability は鍵カプセル化方式の実装。プロセス起動時に一度だけ選択される。
type Capability interface {
	Algorithm() domain.Algorithm
	GenerateKeyPair() (publicKey, privateKey []byte, err error)
	// Wrap はデータ鍵を受信者の公開鍵でラップする（ヘッダなし）。
	Wrap(dataKey, publicKey []byte) ([]byte, error)
	// Unwrap は Wrap の逆変換。
	Unwrap(body, privateKey []byte) ([]byte, error)
	ValidatePublicKey(publicKey []byte) error
}

// 設定値 KEM_ALGORITHM の取り得る値。
const (
	PreferenceAuto      = "auto"
	PreferenceMLKEM     = string(domain.AlgorithmMLKEM768)
	PreferenceClassical = string(domain.AlgorithmRSAOAEP)
)

// DetectCapability は設定と自己診断の結果から使用する方式を決定する。
func DetectCapability(ctx context.Context, preference string) (Capability, error) {
	return detect(ctx, preference, NewMLKEMCapability(), NewRSACapability())
}

func detect(ctx context.Context, preference string, pq, classical Capability) (Capability, error) {
	switch preference {
	case PreferenceClassical:
		return classical, nil
	case PreferenceMLKEM:
		if err := selfTest(pq); err != nil {
			return nil, fmt.Errorf("post-quantum capability unavailable: %w", err)
		}
		return pq, nil
	case "", PreferenceAuto:
		if err := selfTest(pq); err != nil {
			slog.WarnContext(ctx, "post-quantum capability unavailable, falling back to classical",
				"operation", "detect_capability",
				"fallback", classical.Algorithm(),
				"error", err,
			)
			return classical, nil
		}
		return pq, nil
	default:
		return nil, fmt.Errorf("unknown KEM algorithm preference: %q", preference)
	}
}

// selfTest は鍵生成・ラップ・アンラップが往復することを確認する。
func selfTest(c Capability) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("self test panicked: %v", r)
		}
	}()

	pub, priv, err := c.GenerateKeyPair()
	if err != nil {
		return err
	}
	probe, err := GenerateDataKey()
	if err != nil {
		return err
	}
	body, err := c.Wrap(probe, pub)
	if err != nil {
		return err
	}
	got, err := c.Unwrap(body, priv)
	if err != nil {
		return err
	}
	if !bytes.Equal(got, probe) {
		return fmt.Errorf("self test round trip mismatch")
	}
	return nil
}
