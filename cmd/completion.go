package cmd

import (
	"os"
	"strings"

	"github.com/bitcloutplus/cli/internal/config"
	"github.com/bitcloutplus/cli/pkg/state"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for plus.

Besides commands and flags, the scripts complete the public keys of the
accounts you are logged in with for 'plus accounts switch' and
'plus accounts logout'. The keys are read from the local state store.

To load completions:

Bash:
  $ source <(plus completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ plus completion bash > /etc/bash_completion.d/plus
  # macOS:
  $ plus completion bash > $(brew --prefix)/etc/bash_completion.d/plus

Zsh:
  # Enable shell completion once if your environment lacks it:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc
  $ plus completion zsh > "${fpath[1]}/_plus"

Fish:
  $ plus completion fish > ~/.config/fish/completions/plus.fish
`,
	DisableFlagsInUseLine: true,
	PersistentPreRunE:     func(cmd *cobra.Command, args []string) error { return nil },
	ValidArgs:             []string{"bash", "zsh", "fish"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletion(os.Stdout)
		case "zsh":
			return cmd.Root().GenZshCompletion(os.Stdout)
		case "fish":
			return cmd.Root().GenFishCompletion(os.Stdout, true)
		}
		return nil
	},
}

func init() {
	accountsSwitchCmd.ValidArgsFunction = completeAccounts
	accountsLogoutCmd.ValidArgsFunction = completeAccounts
	rootCmd.AddCommand(completionCmd)
}

// completeAccounts offers the stored accounts' public keys. Completion runs
// without the root pre-run, so the store is opened here.
func completeAccounts(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	return accountCompletions(state.NewAccounts(openStore(cfg)), toComplete), cobra.ShellCompDirectiveNoFileComp
}

func accountCompletions(accounts AccountStore, prefix string) []string {
	users, err := accounts.Users()
	if err != nil {
		return nil
	}
	active, _ := accounts.ActivePublicKey()
	return lo.FilterMap(users, func(u state.User, _ int) (string, bool) {
		if !strings.HasPrefix(u.PublicKey, prefix) {
			return "", false
		}
		if u.PublicKey == active {
			return u.PublicKey + "\tactive account", true
		}
		return u.PublicKey + "\taccount", true
	})
}
