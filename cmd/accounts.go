package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bitcloutplus/cli/pkg/identity"
	"github.com/bitcloutplus/cli/pkg/node"
	"github.com/bitcloutplus/cli/pkg/state"
	"github.com/bitcloutplus/cli/pkg/table"
	"github.com/bitcloutplus/cli/pkg/util"
	"github.com/pterm/pterm"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// AccountStore is the persisted account list.
type AccountStore interface {
	ActivePublicKey() (string, error)
	Users() ([]state.User, error)
	Switch(publicKey string) error
}

// ProfileService resolves public keys and usernames to profiles.
type ProfileService interface {
	GetProfileByPublicKey(ctx context.Context, publicKey string) (*node.Profile, error)
	GetProfileByUsername(ctx context.Context, username string) (*node.Profile, error)
}

// AccountsCmd handles the local account commands.
type AccountsCmd struct {
	accounts AccountStore
	profiles ProfileService
}

type AccountsListInput struct {
	Output string
}

type accountRow struct {
	PublicKey   string `json:"publicKey"`
	Username    string `json:"username,omitempty"`
	AccessLevel int    `json:"accessLevel"`
	Active      bool   `json:"active"`
}

func (c AccountsCmd) List(ctx context.Context, in AccountsListInput) error {
	if in.Output != "" && in.Output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}
	users, err := c.accounts.Users()
	if err != nil {
		return err
	}
	active, _ := c.accounts.ActivePublicKey()

	rows := lo.Map(users, func(u state.User, _ int) accountRow {
		return accountRow{
			PublicKey:   u.PublicKey,
			Username:    c.username(ctx, u.PublicKey),
			AccessLevel: u.Session.AccessLevel,
			Active:      u.PublicKey == active,
		}
	})

	if in.Output == "json" {
		return util.PrintPrettyJSON(rows)
	}
	if len(rows) == 0 {
		pterm.Info.Println("No accounts. Run 'plus accounts login' to add one.")
		return nil
	}

	data := pterm.TableData{{"", "Username", "Public Key", "Access Level"}}
	for _, r := range rows {
		marker := ""
		if r.Active {
			marker = "*"
		}
		data = append(data, []string{marker, util.OrDash(r.Username), r.PublicKey, fmt.Sprint(r.AccessLevel)})
	}
	table.PrintTableNoPad(data, true)
	return nil
}

func (c AccountsCmd) username(ctx context.Context, publicKey string) string {
	if c.profiles == nil {
		return ""
	}
	p, err := c.profiles.GetProfileByPublicKey(ctx, publicKey)
	if err != nil || p == nil {
		return ""
	}
	return p.Username
}

// Switch activates the account with the given public key or username.
func (c AccountsCmd) Switch(ctx context.Context, account string) error {
	err := c.accounts.Switch(account)
	if errors.Is(err, state.ErrUnknownAccount) && c.profiles != nil {
		p, lookupErr := c.profiles.GetProfileByUsername(ctx, strings.TrimPrefix(account, "@"))
		if lookupErr != nil || p == nil {
			return err
		}
		if err := c.accounts.Switch(p.PublicKeyBase58Check); err != nil {
			return err
		}
		pterm.Success.Printf("Switched to %s\n", util.FirstOrDash(p.Username, p.PublicKeyBase58Check))
		return nil
	}
	if err != nil {
		return err
	}
	name := c.username(ctx, account)
	pterm.Success.Printf("Switched to %s\n", util.FirstOrDash(name, account))
	return nil
}

var accountsCmd = &cobra.Command{
	Use:     "accounts",
	Aliases: []string{"account"},
	Short:   "Manage identity provider accounts",
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List logged in accounts",
	Args:  cobra.NoArgs,
	RunE:  runAccountsList,
}

var accountsSwitchCmd = &cobra.Command{
	Use:   "switch <public-key|username>",
	Short: "Make an account the active one",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountsSwitch,
}

var accountsLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in with the identity provider",
	Args:  cobra.NoArgs,
	RunE:  runAccountsLogin,
}

var accountsLogoutCmd = &cobra.Command{
	Use:   "logout <public-key>",
	Short: "Log an account out of the identity provider",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountsLogout,
}

func init() {
	accountsListCmd.Flags().StringP("output", "o", "", "Output format (json)")
	accountsLoginCmd.Flags().Int("access-level", 2, "Access level to request from the identity provider")

	accountsCmd.AddCommand(accountsListCmd, accountsSwitchCmd, accountsLoginCmd, accountsLogoutCmd)
	rootCmd.AddCommand(accountsCmd)
}

func runAccountsList(cmd *cobra.Command, args []string) error {
	a := getApp(cmd)
	output, _ := cmd.Flags().GetString("output")
	c := AccountsCmd{accounts: a.accounts, profiles: a.node}
	return c.List(cmd.Context(), AccountsListInput{Output: output})
}

func runAccountsSwitch(cmd *cobra.Command, args []string) error {
	a := getApp(cmd)
	c := AccountsCmd{accounts: a.accounts, profiles: a.node}
	return c.Switch(cmd.Context(), args[0])
}

func runAccountsLogin(cmd *cobra.Command, args []string) error {
	level, _ := cmd.Flags().GetInt("access-level")
	return accountsPopup(cmd.Context(), getApp(cmd), func(ctx context.Context, ch *identity.Channel) error {
		return ch.OpenLoginPopup(ctx, level)
	})
}

func runAccountsLogout(cmd *cobra.Command, args []string) error {
	pk := args[0]
	return accountsPopup(cmd.Context(), getApp(cmd), func(ctx context.Context, ch *identity.Channel) error {
		return ch.OpenLogoutPopup(ctx, pk)
	})
}

// accountsPopup opens a provider popup and waits for the account list it
// sends back when the user is done.
func accountsPopup(ctx context.Context, a *app, open func(context.Context, *identity.Channel) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s, err := newSession(a, "/", false)
	if err != nil {
		return err
	}
	defer s.close()
	if err := s.start(ctx, sessionHandlers{}); err != nil {
		return err
	}
	if err := open(ctx, s.channel); err != nil {
		return fmt.Errorf("open identity popup: %w", err)
	}
	pterm.Info.Println("Finish in the identity popup...")

	err = s.await(ctx, func(e identity.Event) (bool, error) {
		switch e.Type {
		case identity.EventAccountsReplaced:
			if e.PublicKey == "" {
				pterm.Success.Println("Logged out of all accounts")
			} else {
				pterm.Success.Printf("Active account: %s\n", e.PublicKey)
			}
			return true, nil
		case identity.EventHandlerFailed:
			return true, e.Err
		case identity.EventMalformed:
			return true, fmt.Errorf("unexpected identity response: %s", e.Text)
		}
		return false, nil
	}, func() []string { return nil })
	if err != nil {
		return err
	}
	return a.accounts.SetIdentityServiceURL(s.channel.ProviderURL())
}
