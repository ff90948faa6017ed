// Package cli implements the medichat command-line surface: listing
// conversations and contacts, sending one-off messages, and browsing
// the local history archive.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Keta432/medichat/internal/api"
	"github.com/Keta432/medichat/internal/auth"
	"github.com/Keta432/medichat/internal/config"
	"github.com/Keta432/medichat/internal/logging"
)

var (
	flagConfigPath string
	flagJSONOutput bool
)

// exitCodeAuth distinguishes credential problems from other failures.
const exitCodeAuth = 2

// ExitError carries an exit code out of command execution.
type ExitError struct {
	Code    int
	Err     error
	Printed bool
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit code %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Execute runs the CLI with the given version string.
func Execute(version string) error {
	return newRootCmd(version).Execute()
}

func newRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "medichat",
		Short:         "Terminal messaging client for the MediCare portal",
		Long:          "medichat keeps hospital portal conversations in your terminal: a live TUI plus scriptable subcommands.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "Path to config file")
	cmd.PersistentFlags().BoolVar(&flagJSONOutput, "json", false, "Emit JSON instead of tables")

	cmd.AddCommand(
		newUICmd(),
		newConversationsCmd(),
		newContactsCmd(),
		newSendCmd(),
		newHistoryCmd(),
		newWhoamiCmd(),
	)

	return cmd
}

// loadConfig resolves the effective configuration and initializes
// logging from it.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if flagConfigPath != "" {
		cfg, err = config.LoadFromFile(flagConfigPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	})
	return cfg, nil
}

// bootstrap builds the API client and the caller's identity from
// configuration.
func bootstrap() (*config.Config, *api.Client, auth.Identity, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, auth.Identity{}, err
	}

	token, err := cfg.BearerToken()
	if err != nil {
		return nil, nil, auth.Identity{}, &ExitError{Code: exitCodeAuth, Err: err}
	}

	identity, err := auth.FromToken(token)
	if err != nil {
		return nil, nil, auth.Identity{}, &ExitError{Code: exitCodeAuth, Err: fmt.Errorf("invalid API token: %w", err)}
	}

	client, err := api.NewClient(api.ClientConfig{
		BaseURL: cfg.API.BaseURL,
		Token:   token,
		Timeout: cfg.API.Timeout,
	})
	if err != nil {
		return nil, nil, auth.Identity{}, err
	}

	return cfg, client, identity, nil
}
