package crypto

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"secure-file-service/internal/domain"
)

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	key, err := GenerateDataKey()
	require.NoError(t, err)

	for _, n := range []int{0, 1, 15, 16, 17, 1024, 64*1024 + 3} {
		plaintext := bytes.Repeat([]byte{0xA5}, n)

		ct, iv, tag, err := Encrypt(plaintext, key)
		require.NoError(t, err)
		require.Len(t, iv, IVSize)
		require.Len(t, tag, TagSize)
		require.Len(t, ct, n)

		got, err := Decrypt(ct, key, iv, tag)
		require.NoError(t, err)
		require.True(t, bytes.Equal(plaintext, got), "length %d", n)
	}
}

func TestEncrypt_FreshIVPerCall(t *testing.T) {
	key, err := GenerateDataKey()
	require.NoError(t, err)

	_, iv1, _, err := Encrypt([]byte("same"), key)
	require.NoError(t, err)
	_, iv2, _, err := Encrypt([]byte("same"), key)
	require.NoError(t, err)
	require.NotEqual(t, iv1, iv2)
}

func TestDecrypt_TamperDetection(t *testing.T) {
	key, err := GenerateDataKey()
	require.NoError(t, err)

	ct, iv, tag, err := Encrypt([]byte("honeyfile contents"), key)
	require.NoError(t, err)

	// 暗号文の全ビットを1つずつ反転
	for i := 0; i < len(ct)*8; i++ {
		tampered := append([]byte(nil), ct...)
		tampered[i/8] ^= 1 << (i % 8)
		out, err := Decrypt(tampered, key, iv, tag)
		require.ErrorIs(t, err, domain.ErrAuthenticationFailure)
		require.Nil(t, out)
	}

	// 認証タグの全ビットを1つずつ反転
	for i := 0; i < len(tag)*8; i++ {
		tampered := append([]byte(nil), tag...)
		tampered[i/8] ^= 1 << (i % 8)
		out, err := Decrypt(ct, key, iv, tampered)
		require.ErrorIs(t, err, domain.ErrAuthenticationFailure)
		require.Nil(t, out)
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	key, _ := GenerateDataKey()
	other, _ := GenerateDataKey()

	ct, iv, tag, err := Encrypt([]byte("secret"), key)
	require.NoError(t, err)

	_, err = Decrypt(ct, other, iv, tag)
	require.ErrorIs(t, err, domain.ErrAuthenticationFailure)
	require.ErrorIs(t, err, domain.ErrCrypto)
}

func TestCipher_KeyFormat(t *testing.T) {
	_, _, _, err := Encrypt([]byte("x"), make([]byte, 16))
	require.ErrorIs(t, err, domain.ErrKeyFormat)

	_, err = Decrypt([]byte("x"), make([]byte, 31), make([]byte, IVSize), make([]byte, TagSize))
	require.ErrorIs(t, err, domain.ErrKeyFormat)

	key, _ := GenerateDataKey()
	_, err = Decrypt([]byte("x"), key, make([]byte, 8), make([]byte, TagSize))
	require.ErrorIs(t, err, domain.ErrKeyFormat)
	require.False(t, errors.Is(err, domain.ErrAuthenticationFailure))
}
