package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"secure-file-service/internal/crypto"
	"secure-file-service/internal/handler"
	"secure-file-service/internal/keystore"
)

// kem はラップ・アンラップ用。両方式を受け付ける。
var kem = crypto.NewKeyEncapsulationService(crypto.NewMLKEMCapability(), crypto.NewRSACapability())

// readPassphrase はパスフレーズを端末から読む。VAULT_PASSPHRASE が設定されていればそれを使う。
func readPassphrase(prompt string) ([]byte, error) {
	if p := os.Getenv("VAULT_PASSPHRASE"); p != "" {
		return []byte(p), nil
	}
	fmt.Fprint(os.Stderr, prompt)
	p, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading passphrase: %w", err)
	}
	return p, nil
}

func keyFilePath(path, userID string) (string, error) {
	if path != "" {
		return path, nil
	}
	if userID == "" {
		return "", fmt.Errorf("--key-file or --user is required")
	}
	return keystore.DefaultPath(userID)
}

// unlock は鍵ファイルを読み込み、秘密鍵を復号する。
func unlock(path string) (*keystore.KeyFile, []byte, error) {
	kf, err := keystore.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("loading key file: %w", err)
	}
	pass, err := readPassphrase("Passphrase for " + kf.UserID + ": ")
	if err != nil {
		return nil, nil, err
	}
	priv, err := kf.Open(pass)
	if err != nil {
		return nil, nil, err
	}
	return kf, priv, nil
}

func registerPublicKey(kf *keystore.KeyFile) error {
	_, err := call(http.MethodPut, "/v1/users/me/key", handler.RegisterKeyRequest{
		PublicKey: base64.StdEncoding.EncodeToString(kf.PublicKey),
		Algorithm: string(kf.Algorithm),
	}, http.StatusOK, nil)
	return err
}

// keygenCmd は鍵ペアの生成コマンド。
func keygenCmd() *cobra.Command {
	var userID, out, algorithm string
	var register bool
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a key pair and store the private key encrypted with a passphrase",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := keyFilePath(out, userID)
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("key file already exists: %s", path)
			}

			capability, err := crypto.DetectCapability(context.Background(), algorithm)
			if err != nil {
				return err
			}
			pair, err := crypto.NewKeyEncapsulationService(capability).GenerateKeyPair()
			if err != nil {
				return fmt.Errorf("generating key pair: %w", err)
			}

			pass, err := readPassphrase("New passphrase: ")
			if err != nil {
				return err
			}
			if os.Getenv("VAULT_PASSPHRASE") == "" {
				confirm, err := readPassphrase("Confirm passphrase: ")
				if err != nil {
					return err
				}
				if !bytes.Equal(pass, confirm) {
					return fmt.Errorf("passphrases do not match")
				}
			}

			kf, err := keystore.Seal(pair, userID, pass)
			if err != nil {
				return err
			}
			if err := keystore.Save(path, kf); err != nil {
				return fmt.Errorf("saving key file: %w", err)
			}
			success("Generated %s key pair at %s", pair.Algorithm, path)

			if register {
				if err := registerPublicKey(kf); err != nil {
					return err
				}
				success("Registered public key")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User ID (required)")
	cmd.Flags().StringVar(&out, "key-file", "", "Key file path (defaults to the user config directory)")
	cmd.Flags().StringVar(&algorithm, "algorithm", crypto.PreferenceAuto, "auto, ml-kem-768 or rsa-oaep-2048")
	cmd.Flags().BoolVar(&register, "register", false, "Register the public key with the server")
	cmd.MarkFlagRequired("user")
	return cmd
}

// registerKeyCmd は公開鍵の登録コマンド。
func registerKeyCmd() *cobra.Command {
	var userID, path string
	cmd := &cobra.Command{
		Use:   "register-key",
		Short: "Register the public key from a key file",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := keyFilePath(path, userID)
			if err != nil {
				return err
			}
			kf, err := keystore.Load(p)
			if err != nil {
				return fmt.Errorf("loading key file: %w", err)
			}
			if err := registerPublicKey(kf); err != nil {
				return err
			}
			success("Registered %s public key for %s", kf.Algorithm, kf.UserID)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User ID")
	cmd.Flags().StringVar(&path, "key-file", "", "Key file path")
	return cmd
}
