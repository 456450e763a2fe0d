package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"secure-file-service/internal/domain"
	"secure-file-service/internal/handler"
)

// shareCmd はデータ鍵を共有先の公開鍵でラップし直して共有するコマンド。
func shareCmd() *cobra.Command {
	var userID, path, to, permission, expires string
	cmd := &cobra.Command{
		Use:   "share <file_id>",
		Short: "Share a file by re-wrapping its data key for another user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fileID := args[0]
			p, err := keyFilePath(path, userID)
			if err != nil {
				return err
			}

			var own handler.KeyResponse
			if _, err := call(http.MethodGet, "/v1/files/"+url.PathEscape(fileID)+"/key", nil, http.StatusOK, &own); err != nil {
				return err
			}
			var peer handler.PublicKeyResponse
			if _, err := call(http.MethodGet, "/v1/users/"+url.PathEscape(to)+"/key", nil, http.StatusOK, &peer); err != nil {
				return err
			}

			_, priv, err := unlock(p)
			if err != nil {
				return err
			}
			wrapped, err := b64.DecodeString(own.WrappedKey)
			if err != nil {
				return err
			}
			dataKey, err := kem.Unwrap(wrapped, priv, domain.Algorithm(own.Algorithm))
			if err != nil {
				return err
			}
			peerKey, err := b64.DecodeString(peer.PublicKey)
			if err != nil {
				return err
			}
			rewrapped, err := kem.Wrap(dataKey, peerKey, domain.Algorithm(peer.Algorithm))
			if err != nil {
				return err
			}

			var resp handler.ShareResponse
			// 既存の共有は200で返り、内容は変更されない
			raw, err := request(http.MethodPost, "/v1/files/"+url.PathEscape(fileID)+"/grants", handler.ShareRequest{
				GranteeID:  to,
				WrappedKey: b64.EncodeToString(rewrapped),
				Algorithm:  peer.Algorithm,
				Permission: permission,
				ExpiresAt:  expires,
			}, &resp, http.StatusCreated, http.StatusOK)
			if err != nil {
				return err
			}
			if output == "json" {
				fmt.Println(string(raw))
				return nil
			}
			if !resp.Created {
				success("%s already has access to %s", to, fileID)
				return nil
			}
			success("Shared %s with %s (%s)", fileID, to, permission)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User ID")
	cmd.Flags().StringVar(&path, "key-file", "", "Key file path")
	cmd.Flags().StringVar(&to, "to", "", "Grantee user ID (required)")
	cmd.Flags().StringVar(&permission, "permission", "read", "read or write")
	cmd.Flags().StringVar(&expires, "expires", "", "Expiry as ISO-8601 (optional)")
	cmd.MarkFlagRequired("to")
	return cmd
}

// revokeCmd は共有の取り消しコマンド。
func revokeCmd() *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "revoke <file_id>",
		Short: "Revoke a user's access to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoint := "/v1/files/" + url.PathEscape(args[0]) + "/grants/" + url.PathEscape(from)
			if _, err := call(http.MethodDelete, endpoint, nil, http.StatusNoContent, nil); err != nil {
				return err
			}
			success("Revoked %s's access to %s", from, args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Grantee user ID (required)")
	cmd.MarkFlagRequired("from")
	return cmd
}

// grantsCmd は共有一覧の表示コマンド。
func grantsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "grants <file_id>",
		Short: "List who a file is shared with",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var grants []handler.GrantResponse
			raw, err := call(http.MethodGet, "/v1/files/"+url.PathEscape(args[0])+"/grants", nil, http.StatusOK, &grants)
			if err != nil {
				return err
			}
			if output == "json" {
				fmt.Println(string(raw))
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "GRANTEE\tPERMISSION\tALGORITHM\tEXPIRES_AT\tGRANTED_AT")
			for _, g := range grants {
				expires := "-"
				if g.ExpiresAt != nil {
					expires = *g.ExpiresAt
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", g.GranteeID, g.Permission, g.Algorithm, expires, g.GrantedAt)
			}
			return w.Flush()
		},
	}
}
