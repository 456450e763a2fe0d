package usecase

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"secure-file-service/internal/crypto"
	"secure-file-service/internal/domain"
)

func TestExchangeService_RoundTrip(t *testing.T) {
	ctx := context.Background()
	kem := crypto.NewKeyEncapsulationService(crypto.NewMLKEMCapability())
	svc := NewExchangeService(kem, crypto.NewEphemeralKeyStore(kem, time.Minute))

	// 送信側と受信側の一時鍵
	sender, err := svc.IssueKeyPair(ctx)
	if err != nil {
		t.Fatalf("IssueKeyPair: %v", err)
	}
	receiver, err := svc.IssueKeyPair(ctx)
	if err != nil {
		t.Fatalf("IssueKeyPair: %v", err)
	}

	msg := []byte("hello over the wire")
	res, err := svc.Encrypt(ctx, sender.KeyID, receiver.PublicKey, msg)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if res.Algorithm != domain.AlgorithmMLKEM768 {
		t.Errorf("unexpected algorithm %s", res.Algorithm)
	}

	plain, err := svc.Decrypt(ctx, receiver.KeyID, res.WrappedKey, res.Ciphertext, res.IV, res.AuthTag)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(plain, msg) {
		t.Errorf("want %q, got %q", msg, plain)
	}

	tampered := append([]byte(nil), res.AuthTag...)
	tampered[0] ^= 0x01
	if _, err := svc.Decrypt(ctx, receiver.KeyID, res.WrappedKey, res.Ciphertext, res.IV, tampered); !errors.Is(err, domain.ErrAuthenticationFailure) {
		t.Errorf("want ErrAuthenticationFailure, got %v", err)
	}
}

func TestExchangeService_UnknownOrExpiredKey(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	kem := crypto.NewKeyEncapsulationService(crypto.NewMLKEMCapability())
	store := crypto.NewEphemeralKeyStore(kem, 5*time.Minute, crypto.WithClock(func() time.Time { return now }))
	svc := NewExchangeService(kem, store)

	if _, err := svc.Encrypt(ctx, "unknown", nil, []byte("x")); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}

	key, err := svc.IssueKeyPair(ctx)
	if err != nil {
		t.Fatalf("IssueKeyPair: %v", err)
	}
	now = now.Add(5*time.Minute + time.Second)
	if _, err := svc.Encrypt(ctx, key.KeyID, key.PublicKey, []byte("x")); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expired key: want ErrNotFound, got %v", err)
	}
	if _, err := svc.Decrypt(ctx, key.KeyID, nil, nil, nil, nil); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expired key: want ErrNotFound, got %v", err)
	}
}
