package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bitcloutplus/cli/internal/config"
	"github.com/bitcloutplus/cli/pkg/identity"
	"github.com/bitcloutplus/cli/pkg/node"
	"github.com/bitcloutplus/cli/pkg/state"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const defaultTimeout = 5 * time.Minute

var logLevels = map[string]pterm.LogLevel{
	"trace": pterm.LogLevelTrace,
	"debug": pterm.LogLevelDebug,
	"info":  pterm.LogLevelInfo,
	"warn":  pterm.LogLevelWarn,
	"error": pterm.LogLevelError,
}

// logLevelFlag is a pflag.Value restricted to the pterm log levels.
type logLevelFlag struct {
	name string
}

var _ pflag.Value = (*logLevelFlag)(nil)

func (f *logLevelFlag) String() string { return f.name }
func (f *logLevelFlag) Type() string   { return "level" }

func (f *logLevelFlag) Set(s string) error {
	s = strings.ToLower(strings.TrimSpace(s))
	if _, ok := logLevels[s]; !ok {
		return fmt.Errorf("unknown log level %q (want trace, debug, info, warn or error)", s)
	}
	f.name = s
	return nil
}

func (f *logLevelFlag) level() pterm.LogLevel {
	return logLevels[f.name]
}

var (
	logLevel  = &logLevelFlag{name: "warn"}
	envFile   string
	timeout   time.Duration
	noBrowser bool
)

var rootCmd = &cobra.Command{
	Use:   "plus",
	Short: "Sign and submit DeSo transactions through the identity provider",
	Long: `plus is a companion for the DeSo/BitClout web app. It signs transactions
with your identity provider accounts, submits them to a node and runs the NFT
and notification flows the web app lacks.`,
	SilenceUsage:      true,
	PersistentPreRunE: setupApp,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.Var(logLevel, "log-level", "Log level (trace, debug, info, warn, error)")
	flags.StringVar(&envFile, "env-file", ".env", "Optional dotenv file to load settings from")
	flags.DurationVar(&timeout, "timeout", defaultTimeout, "How long to wait for the identity provider")
	flags.BoolVar(&noBrowser, "no-browser", false, "Print the bridge URL instead of opening a browser")
}

// Root returns the root command.
func Root() *cobra.Command {
	return rootCmd
}

// app holds what every command shares.
type app struct {
	cfg      *config.Config
	log      *pterm.Logger
	store    state.Store
	accounts *state.Accounts
	node     *node.Client
}

type appKey struct{}

func setupApp(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	log := pterm.DefaultLogger.WithLevel(logLevel.level())

	store := openStore(cfg)
	a := &app{
		cfg:      cfg,
		log:      log,
		store:    store,
		accounts: state.NewAccounts(store),
		node:     node.NewClient(cfg.NodeURL, node.WithTimeout(cfg.HTTPTimeout)),
	}
	log.Debug("configuration loaded", log.Args("node", cfg.NodeURL, "backend", cfg.StateBackend, "state_dir", cfg.StateDir))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, appKey{}, a))
	return nil
}

// openStore opens the state backend cfg selects.
func openStore(cfg *config.Config) state.Store {
	if cfg.StateBackend == config.BackendKeyring {
		return state.NewKeyringStore(state.DefaultKeyringService)
	}
	return state.NewFileStore(cfg.StateDir)
}

func getApp(cmd *cobra.Command) *app {
	a, _ := cmd.Context().Value(appKey{}).(*app)
	if a == nil {
		panic("app not initialised: command ran without the root pre-run")
	}
	return a
}

// identityURL is the provider the accounts belong to, unless overridden.
func (a *app) identityURL() string {
	if a.cfg.IdentityURL != "" {
		return a.cfg.IdentityURL
	}
	u, err := a.accounts.IdentityServiceURL()
	if err != nil {
		a.log.Warn("failed to read identity service url", a.log.Args("error", err))
		return identity.DefaultProviderURL
	}
	return u
}
