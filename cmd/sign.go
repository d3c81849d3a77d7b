package cmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// SignInput holds the arguments of plus sign.
type SignInput struct {
	TransactionHex string
	// Path is the app path the user is on; NFT flow paths reload instead of
	// navigating away.
	Path string
	Open bool
}

var signCmd = &cobra.Command{
	Use:   "sign <transaction-hex>",
	Short: "Sign a transaction with the active account and submit it",
	Args:  cobra.ExactArgs(1),
	RunE:  runSign,
}

func init() {
	signCmd.Flags().String("path", "/", "App path the transaction was created on")
	signCmd.Flags().Bool("open", false, "Open the resulting page in the browser")
	rootCmd.AddCommand(signCmd)
}

func validateTransactionHex(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("transaction hex must not be empty")
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", fmt.Errorf("invalid transaction hex: %w", err)
	}
	return strings.ToLower(s), nil
}

func runSign(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("path")
	open, _ := cmd.Flags().GetBool("open")
	return signTransaction(cmd.Context(), getApp(cmd), SignInput{TransactionHex: args[0], Path: path, Open: open})
}

func signTransaction(ctx context.Context, a *app, in SignInput) error {
	txHex, err := validateTransactionHex(in.TransactionHex)
	if err != nil {
		return err
	}
	if _, err := a.accounts.ActivePublicKey(); err != nil {
		pterm.Error.Println("No account is logged in. Run 'plus accounts login' first.")
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s, err := newSession(a, in.Path, in.Open)
	if err != nil {
		return err
	}
	defer s.close()
	if err := s.start(ctx, sessionHandlers{}); err != nil {
		return err
	}

	id, err := s.requester.Sign(ctx, txHex)
	if err != nil {
		return fmt.Errorf("request signature: %w", err)
	}
	pterm.Info.Println("Waiting for the identity provider to sign...")

	return s.await(ctx, submittedOrFailed(s.nav), func() []string { return []string{id} })
}

