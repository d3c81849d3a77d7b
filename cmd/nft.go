package cmd

import (
	"context"
	"fmt"
	"sync"

	"github.com/bitcloutplus/cli/pkg/identity"
	"github.com/bitcloutplus/cli/pkg/nft"
	"github.com/bitcloutplus/cli/pkg/node"
	"github.com/bitcloutplus/cli/pkg/routes"
	"github.com/bitcloutplus/cli/pkg/table"
	"github.com/bitcloutplus/cli/pkg/util"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// PendingTransferLister lists NFTs waiting for the user to accept them.
type PendingTransferLister interface {
	PendingTransfers(ctx context.Context) ([]node.NFTPost, error)
}

// OwnedEntryLister lists the serials of a post the user owns.
type OwnedEntryLister interface {
	OwnedEntries(ctx context.Context, postHashHex string) ([]node.NFTEntry, error)
}

// NFTCmd handles the read-only NFT commands.
type NFTCmd struct {
	nfts  PendingTransferLister
	owned OwnedEntryLister
}

type NFTOwnedInput struct {
	PostHashHex string
	Output      string
}

// Owned prints the serials of a post owned by the active account.
func (c NFTCmd) Owned(ctx context.Context, in NFTOwnedInput) error {
	if in.Output != "" && in.Output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}
	entries, err := c.owned.OwnedEntries(ctx, in.PostHashHex)
	if err != nil {
		return err
	}
	if in.Output == "json" {
		if entries == nil {
			entries = []node.NFTEntry{}
		}
		return util.PrintPrettyJSON(entries)
	}
	if len(entries) == 0 {
		pterm.Info.Printf("You own no serials of %s\n", in.PostHashHex)
		return nil
	}

	data := pterm.TableData{{"Serial", "For Sale", "Min Bid", "Pending", "Unlockable"}}
	for _, e := range entries {
		minBid := "-"
		if e.IsForSale {
			minBid = util.FormatNanos(e.MinBidAmountNanos)
		}
		data = append(data, []string{
			fmt.Sprint(e.SerialNumber),
			fmt.Sprint(e.IsForSale),
			minBid,
			fmt.Sprint(e.IsPending),
			fmt.Sprint(e.EncryptedUnlockableText != ""),
		})
	}
	table.PrintTableNoPad(data, true)
	return nil
}

type NFTTransfersInput struct {
	Output string
}

func (c NFTCmd) Transfers(ctx context.Context, in NFTTransfersInput) error {
	if in.Output != "" && in.Output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}
	pending, err := c.nfts.PendingTransfers(ctx)
	if err != nil {
		return err
	}
	if in.Output == "json" {
		if pending == nil {
			pending = []node.NFTPost{}
		}
		return util.PrintPrettyJSON(pending)
	}
	if len(pending) == 0 {
		pterm.Info.Println("No pending NFT transfers")
		return nil
	}

	pterm.Info.Println(`When an NFT is transferred it remains "pending" until the recipient accepts it.`)
	data := pterm.TableData{{"Post Hash", "Serial", "Creator", "Post", "Unlockable"}}
	for _, p := range pending {
		var hash, creator, body string
		var unlockable bool
		if pe := p.PostEntryResponse; pe != nil {
			hash, body, unlockable = pe.PostHashHex, pe.Body, pe.HasUnlockable
			if pe.ProfileEntryResponse != nil {
				creator = pe.ProfileEntryResponse.Username
			}
		}
		for _, e := range p.NFTEntryResponses {
			data = append(data, []string{
				util.OrDash(hash),
				fmt.Sprint(e.SerialNumber),
				util.OrDash(creator),
				util.OrDash(util.Excerpt(body, 40)),
				fmt.Sprint(unlockable),
			})
		}
	}
	table.PrintTableNoPad(data, true)
	return nil
}

var nftCmd = &cobra.Command{
	Use:   "nft",
	Short: "Burn, transfer and accept NFTs",
}

var nftTransfersCmd = &cobra.Command{
	Use:   "transfers",
	Short: "List NFTs transferred to you that wait for acceptance",
	Args:  cobra.NoArgs,
	RunE:  runNFTTransfers,
}

var nftOwnedCmd = &cobra.Command{
	Use:   "owned <post-hash>",
	Short: "List the serials of an NFT you own",
	Args:  cobra.ExactArgs(1),
	RunE:  runNFTOwned,
}

var nftBurnCmd = &cobra.Command{
	Use:   "burn <post-hash>",
	Short: "Burn a serial of an NFT you own",
	Args:  cobra.ExactArgs(1),
	RunE:  runNFTBurn,
}

var nftTransferCmd = &cobra.Command{
	Use:   "transfer <post-hash> <recipient-public-key>",
	Short: "Transfer a serial of an NFT you own",
	Args:  cobra.ExactArgs(2),
	RunE:  runNFTTransfer,
}

var nftAcceptCmd = &cobra.Command{
	Use:   "accept <post-hash>",
	Short: "Accept a pending NFT transfer",
	Args:  cobra.ExactArgs(1),
	RunE:  runNFTAccept,
}

func init() {
	nftTransfersCmd.Flags().StringP("output", "o", "", "Output format (json)")
	nftOwnedCmd.Flags().StringP("output", "o", "", "Output format (json)")
	for _, c := range []*cobra.Command{nftBurnCmd, nftTransferCmd, nftAcceptCmd} {
		c.Flags().Uint64("serial", 0, "Serial number of the NFT")
		_ = c.MarkFlagRequired("serial")
		c.Flags().Bool("open", false, "Open the resulting page in the browser")
	}
	nftTransferCmd.Flags().Bool("unlockable", false, "Re-encrypt the unlockable content for the recipient")

	nftCmd.AddCommand(nftTransfersCmd, nftOwnedCmd, nftBurnCmd, nftTransferCmd, nftAcceptCmd)
	rootCmd.AddCommand(nftCmd)
}

func runNFTTransfers(cmd *cobra.Command, args []string) error {
	a := getApp(cmd)
	output, _ := cmd.Flags().GetString("output")
	c := NFTCmd{nfts: nft.NewFlows(a.node, nil, a.accounts, a.log)}
	return c.Transfers(cmd.Context(), NFTTransfersInput{Output: output})
}

func runNFTOwned(cmd *cobra.Command, args []string) error {
	a := getApp(cmd)
	output, _ := cmd.Flags().GetString("output")
	c := NFTCmd{owned: nft.NewFlows(a.node, nil, a.accounts, a.log)}
	return c.Owned(cmd.Context(), NFTOwnedInput{PostHashHex: args[0], Output: output})
}

func runNFTBurn(cmd *cobra.Command, args []string) error {
	serial, _ := cmd.Flags().GetUint64("serial")
	open, _ := cmd.Flags().GetBool("open")
	hash := args[0]
	return runNFTFlow(cmd.Context(), getApp(cmd), routes.NFTBurnPath(hash), open, func(ctx context.Context, f *nft.Flows) (string, error) {
		return f.Burn(ctx, hash, serial)
	})
}

func runNFTTransfer(cmd *cobra.Command, args []string) error {
	serial, _ := cmd.Flags().GetUint64("serial")
	open, _ := cmd.Flags().GetBool("open")
	unlockable, _ := cmd.Flags().GetBool("unlockable")
	hash, recipient := args[0], args[1]
	return runNFTFlow(cmd.Context(), getApp(cmd), routes.NFTTransferPath(hash), open, func(ctx context.Context, f *nft.Flows) (string, error) {
		return f.Transfer(ctx, hash, serial, recipient, unlockable)
	})
}

func runNFTAccept(cmd *cobra.Command, args []string) error {
	serial, _ := cmd.Flags().GetUint64("serial")
	open, _ := cmd.Flags().GetBool("open")
	hash := args[0]
	return runNFTFlow(cmd.Context(), getApp(cmd), routes.NFTTransfersPath, open, func(ctx context.Context, f *nft.Flows) (string, error) {
		return f.Accept(ctx, hash, serial)
	})
}

// runNFTFlow starts an NFT flow from path and waits for its transaction to
// be submitted.
func runNFTFlow(ctx context.Context, a *app, path string, open bool, start func(context.Context, *nft.Flows) (string, error)) error {
	if _, err := a.accounts.ActivePublicKey(); err != nil {
		pterm.Error.Println("No account is logged in. Run 'plus accounts login' first.")
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s, err := newSession(a, path, open)
	if err != nil {
		return err
	}
	defer s.close()

	var mu sync.Mutex
	var ids []string
	track := func(id string) {
		mu.Lock()
		ids = append(ids, id)
		mu.Unlock()
	}

	flows := nft.NewFlows(a.node, s.requester, a.accounts, a.log)
	flows.OnRequest = track
	if err := s.start(ctx, sessionHandlers{Unlockables: flows}); err != nil {
		return err
	}

	if _, err := start(ctx, flows); err != nil {
		return err
	}
	pterm.Info.Println("Waiting for the identity provider...")

	done := submittedOrFailed(s.nav)
	return s.await(ctx, func(e identity.Event) (bool, error) {
		if e.Type == identity.EventUnlockableDecrypted {
			pterm.Info.Println("Unlockable content decrypted, re-encrypting for the recipient...")
		}
		return done(e)
	}, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), ids...)
	})
}
