package main

import (
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"secure-file-service/internal/crypto"
	"secure-file-service/internal/domain"
	"secure-file-service/internal/handler"
	"secure-file-service/internal/keystore"
)

var b64 = base64.StdEncoding

// uploadCmd はファイルを暗号化してアップロードするコマンド。
func uploadCmd() *cobra.Command {
	var userID, path string
	var honeyfile bool
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Encrypt a file locally and upload it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := keyFilePath(path, userID)
			if err != nil {
				return err
			}
			kf, err := keystore.Load(p)
			if err != nil {
				return fmt.Errorf("loading key file: %w", err)
			}
			plaintext, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			dataKey, err := crypto.GenerateDataKey()
			if err != nil {
				return err
			}
			ciphertext, iv, tag, err := crypto.Encrypt(plaintext, dataKey)
			if err != nil {
				return err
			}
			wrapped, err := kem.Wrap(dataKey, kf.PublicKey, kf.Algorithm)
			if err != nil {
				return err
			}

			name := filepath.Base(args[0])
			mimeType := mime.TypeByExtension(filepath.Ext(name))
			if mimeType == "" {
				mimeType = "application/octet-stream"
			}

			var resp handler.FileResponse
			raw, err := call(http.MethodPost, "/v1/files", handler.UploadRequest{
				Ciphertext:  b64.EncodeToString(ciphertext),
				IV:          b64.EncodeToString(iv),
				AuthTag:     b64.EncodeToString(tag),
				WrappedKey:  b64.EncodeToString(wrapped),
				Algorithm:   string(kf.Algorithm),
				Name:        name,
				MimeType:    mimeType,
				Size:        int64(len(plaintext)),
				IsHoneyfile: honeyfile,
			}, http.StatusCreated, &resp)
			if err != nil {
				return err
			}

			if output == "json" {
				fmt.Println(string(raw))
				return nil
			}
			success("Uploaded %s (id: %s)", name, color.YellowString(resp.ID))
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User ID")
	cmd.Flags().StringVar(&path, "key-file", "", "Key file path")
	cmd.Flags().BoolVar(&honeyfile, "honeyfile", false, "Mark the file as a decoy that alerts on access")
	return cmd
}

// downloadCmd はファイルをダウンロードして復号するコマンド。
func downloadCmd() *cobra.Command {
	var userID, path, out string
	cmd := &cobra.Command{
		Use:   "download <file_id>",
		Short: "Download a file and decrypt it locally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := keyFilePath(path, userID)
			if err != nil {
				return err
			}

			var resp handler.DownloadResponse
			if _, err := call(http.MethodGet, "/v1/files/"+url.PathEscape(args[0]), nil, http.StatusOK, &resp); err != nil {
				return err
			}

			_, priv, err := unlock(p)
			if err != nil {
				return err
			}
			wrapped, err := b64.DecodeString(resp.WrappedKey)
			if err != nil {
				return err
			}
			dataKey, err := kem.Unwrap(wrapped, priv, domain.Algorithm(resp.Algorithm))
			if err != nil {
				return err
			}
			ciphertext, err := b64.DecodeString(resp.Ciphertext)
			if err != nil {
				return err
			}
			iv, err := b64.DecodeString(resp.IV)
			if err != nil {
				return err
			}
			tag, err := b64.DecodeString(resp.AuthTag)
			if err != nil {
				return err
			}
			plaintext, err := crypto.Decrypt(ciphertext, dataKey, iv, tag)
			if err != nil {
				return err
			}

			if out == "" {
				out = filepath.Base(resp.Name)
			}
			if err := os.WriteFile(out, plaintext, 0o600); err != nil {
				return err
			}
			success("Saved %s (%d bytes)", out, len(plaintext))
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User ID")
	cmd.Flags().StringVar(&path, "key-file", "", "Key file path")
	cmd.Flags().StringVar(&out, "out", "", "Output path (defaults to the original file name)")
	return cmd
}

// listCmd はファイル一覧の取得コマンド。
func listCmd() *cobra.Command {
	var shared bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List owned files, or files shared with you",
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoint := "/v1/files"
			if shared {
				endpoint = "/v1/files/shared"
			}
			var files []handler.FileResponse
			raw, err := call(http.MethodGet, endpoint, nil, http.StatusOK, &files)
			if err != nil {
				return err
			}
			if output == "json" {
				fmt.Println(string(raw))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSIZE\tOWNER\tCREATED_AT")
			for _, f := range files {
				name := f.Name
				if f.IsHoneyfile {
					name += " " + color.MagentaString("[honeyfile]")
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", f.ID, name, f.Size, f.OwnerID, f.CreatedAt)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&shared, "shared", false, "List files shared with you")
	return cmd
}

// deleteCmd はファイルの削除コマンド。
func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <file_id>",
		Short: "Delete a file and all of its grants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := call(http.MethodDelete, "/v1/files/"+url.PathEscape(args[0]), nil, http.StatusNoContent, nil); err != nil {
				return err
			}
			if output == "json" {
				fmt.Println("{}")
				return nil
			}
			success("Deleted %s", args[0])
			return nil
		},
	}
}

// honeyfilesCmd はハニーファイル統計の表示コマンド。
func honeyfilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "honeyfiles",
		Short: "Show honeyfile statistics and recent triggers",
		RunE: func(cmd *cobra.Command, args []string) error {
			var stats handler.HoneyfileStatsResponse
			raw, err := call(http.MethodGet, "/v1/honeyfiles/stats", nil, http.StatusOK, &stats)
			if err != nil {
				return err
			}
			if output == "json" {
				fmt.Println(string(raw))
				return nil
			}

			fmt.Printf("%-10s %d\n", "Total:", stats.Total)
			sprung := fmt.Sprintf("%d", stats.Sprung)
			if stats.Sprung > 0 {
				sprung = color.RedString(sprung)
			}
			fmt.Printf("%-10s %s\n", "Sprung:", sprung)
			if len(stats.Triggers) == 0 {
				return nil
			}
			fmt.Println()
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "TIMESTAMP\tFILE\tACTOR\tDETAIL")
			for _, e := range stats.Triggers {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Timestamp, e.FileID, color.YellowString(e.ActorID), e.Detail)
			}
			return w.Flush()
		},
	}
}
