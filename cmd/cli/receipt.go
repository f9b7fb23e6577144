package main

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Gargee-Buva/Finora/internal/gcs"
	"github.com/Gargee-Buva/Finora/internal/receipts"
)

func (c *cli) receiptCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "receipt", Short: "Read transactions from receipt images"}

	var (
		userID string
		save   bool
	)
	scan := &cobra.Command{
		Use:   "scan <gs://bucket/object | local file>",
		Short: "Extract a transaction draft from a receipt, uploading local files first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if save && userID == "" {
				return errors.New("--user is required with --save")
			}
			ctx := cmd.Context()

			scanner, objects, err := c.app.NewScanner(ctx)
			if err != nil {
				return err
			}
			defer objects.Close()

			uri := args[0]
			if !strings.HasPrefix(uri, "gs://") {
				uri, err = uploadReceipt(ctx, objects, uri)
				if err != nil {
					return err
				}
				c.app.Log.Info().Str("gcs_uri", uri).Msg("Receipt uploaded")
			}

			draft, err := scanner.Scan(ctx, uri)
			if err != nil {
				return err
			}
			if !save {
				return printJSON(cmd.OutOrStdout(), draft)
			}
			return c.saveDraft(cmd, draft, userID)
		},
	}
	scan.Flags().StringVar(&userID, "user", "", "Owner of the saved transaction")
	scan.Flags().BoolVar(&save, "save", false, "Record the draft as a transaction")

	cmd.AddCommand(scan)
	return cmd
}

func (c *cli) saveDraft(cmd *cobra.Command, draft *receipts.Draft, userID string) error {
	tx, err := c.app.Ledger.CreateTransaction(cmd.Context(), draft.NewTransaction(userID))
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), tx)
}

func uploadReceipt(ctx context.Context, objects gcs.ObjectStore, file string) (string, error) {
	f, err := os.Open(file)
	if err != nil {
		return "", fmt.Errorf("opening receipt: %w", err)
	}
	defer f.Close()

	ext := strings.ToLower(filepath.Ext(file))
	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return objects.Upload(ctx, receiptObjectName(uuid.NewString(), ext), contentType, f)
}

func receiptObjectName(id, ext string) string {
	return path.Join("receipts", id+ext)
}
