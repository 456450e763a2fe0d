package crypto

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"secure-file-service/internal/domain"
)

func capabilities() []Capability {
	return []Capability{NewMLKEMCapability(), NewRSACapability()}
}

func TestKeyEncapsulation_RoundTrip(t *testing.T) {
	for _, c := range capabilities() {
		t.Run(string(c.Algorithm()), func(t *testing.T) {
			svc := NewKeyEncapsulationService(c)
			pair, err := svc.GenerateKeyPair()
			require.NoError(t, err)
			require.Equal(t, c.Algorithm(), pair.Algorithm)

			dataKey, err := GenerateDataKey()
			require.NoError(t, err)

			wrapped, err := svc.Wrap(dataKey, pair.PublicKey, pair.Algorithm)
			require.NoError(t, err)
			require.NotContains(t, string(wrapped), string(dataKey))

			alg, err := WrappedAlgorithm(wrapped)
			require.NoError(t, err)
			require.Equal(t, pair.Algorithm, alg)

			got, err := svc.Unwrap(wrapped, pair.PrivateKey, pair.Algorithm)
			require.NoError(t, err)
			require.Equal(t, dataKey, got)
		})
	}
}

func TestKeyEncapsulation_WrapEquivalence(t *testing.T) {
	for _, c := range capabilities() {
		t.Run(string(c.Algorithm()), func(t *testing.T) {
			svc := NewKeyEncapsulationService(c)
			owner, err := svc.GenerateKeyPair()
			require.NoError(t, err)
			grantee, err := svc.GenerateKeyPair()
			require.NoError(t, err)

			dataKey, _ := GenerateDataKey()
			wOwner, err := svc.Wrap(dataKey, owner.PublicKey, owner.Algorithm)
			require.NoError(t, err)

			// 所有者が手元でアンラップし、共有先の公開鍵で再ラップする
			unwrapped, err := svc.Unwrap(wOwner, owner.PrivateKey, owner.Algorithm)
			require.NoError(t, err)
			wGrantee, err := svc.Wrap(unwrapped, grantee.PublicKey, grantee.Algorithm)
			require.NoError(t, err)
			require.NotEqual(t, wOwner, wGrantee)

			k1, err := svc.Unwrap(wOwner, owner.PrivateKey, owner.Algorithm)
			require.NoError(t, err)
			k2, err := svc.Unwrap(wGrantee, grantee.PrivateKey, grantee.Algorithm)
			require.NoError(t, err)
			require.Equal(t, k1, k2)
		})
	}
}

func TestKeyEncapsulation_AlgorithmMismatch(t *testing.T) {
	svc := NewKeyEncapsulationService(NewMLKEMCapability(), NewRSACapability())
	pair, err := svc.GenerateKeyPair()
	require.NoError(t, err)

	dataKey, _ := GenerateDataKey()
	wrapped, err := svc.Wrap(dataKey, pair.PublicKey, domain.AlgorithmMLKEM768)
	require.NoError(t, err)

	_, err = svc.Unwrap(wrapped, pair.PrivateKey, domain.AlgorithmRSAOAEP)
	require.ErrorIs(t, err, domain.ErrAlgorithmMismatch)

	// 有効化されていない方式
	classicalOnly := NewKeyEncapsulationService(NewRSACapability())
	_, err = classicalOnly.Unwrap(wrapped, pair.PrivateKey, domain.AlgorithmMLKEM768)
	require.ErrorIs(t, err, domain.ErrAlgorithmMismatch)
}

func TestKeyEncapsulation_KeyFormat(t *testing.T) {
	for _, c := range capabilities() {
		t.Run(string(c.Algorithm()), func(t *testing.T) {
			svc := NewKeyEncapsulationService(c)
			pair, err := svc.GenerateKeyPair()
			require.NoError(t, err)
			alg := pair.Algorithm

			_, err = svc.Wrap(make([]byte, 16), pair.PublicKey, alg)
			require.ErrorIs(t, err, domain.ErrKeyFormat)

			dataKey, _ := GenerateDataKey()
			_, err = svc.Wrap(dataKey, []byte("not a key"), alg)
			require.ErrorIs(t, err, domain.ErrKeyFormat)

			_, err = svc.Unwrap([]byte{0x01}, pair.PrivateKey, alg)
			require.ErrorIs(t, err, domain.ErrKeyFormat)

			_, err = svc.Unwrap([]byte{0x7f, 0x00, 0x01}, pair.PrivateKey, alg)
			require.ErrorIs(t, err, domain.ErrKeyFormat)

			wrapped, err := svc.Wrap(dataKey, pair.PublicKey, alg)
			require.NoError(t, err)
			_, err = svc.Unwrap(wrapped[:len(wrapped)/2], pair.PrivateKey, alg)
			require.ErrorIs(t, err, domain.ErrCrypto)

			_, err = svc.Unwrap(wrapped, []byte("garbage"), alg)
			require.ErrorIs(t, err, domain.ErrKeyFormat)
		})
	}
}

func TestKeyEncapsulation_WrongPrivateKey(t *testing.T) {
	for _, c := range capabilities() {
		t.Run(string(c.Algorithm()), func(t *testing.T) {
			svc := NewKeyEncapsulationService(c)
			a, _ := svc.GenerateKeyPair()
			b, _ := svc.GenerateKeyPair()

			dataKey, _ := GenerateDataKey()
			wrapped, err := svc.Wrap(dataKey, a.PublicKey, a.Algorithm)
			require.NoError(t, err)

			got, err := svc.Unwrap(wrapped, b.PrivateKey, b.Algorithm)
			require.ErrorIs(t, err, domain.ErrCrypto)
			require.Nil(t, got)
		})
	}
}

// brokenCapability は自己診断に失敗する耐量子方式の代替。
type brokenCapability struct{ Capability }

func (brokenCapability) GenerateKeyPair() ([]byte, []byte, error) {
	return nil, nil, errors.New("library not loaded")
}

func TestDetectCapability(t *testing.T) {
	ctx := context.Background()
	pq := NewMLKEMCapability()
	classical := NewRSACapability()
	broken := brokenCapability{pq}

	c, err := detect(ctx, PreferenceAuto, pq, classical)
	require.NoError(t, err)
	require.Equal(t, domain.AlgorithmMLKEM768, c.Algorithm())

	c, err = detect(ctx, "", broken, classical)
	require.NoError(t, err)
	require.Equal(t, domain.AlgorithmRSAOAEP, c.Algorithm())

	c, err = detect(ctx, PreferenceClassical, pq, classical)
	require.NoError(t, err)
	require.Equal(t, domain.AlgorithmRSAOAEP, c.Algorithm())

	_, err = detect(ctx, PreferenceMLKEM, broken, classical)
	require.Error(t, err)

	_, err = detect(ctx, "kyber-512", pq, classical)
	require.Error(t, err)
}
