package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tallyhq-io/tally-client/internal/constants"
	"github.com/tallyhq-io/tally-client/pkg/tallyclient"
)

// configKeys are the settings the config command manages.
var configKeys = map[string]string{
	"server": "backend server URL (persisted override)",
	"output": "default output format (table, json, yaml)",
}

// NewConfigCommand creates the config command group.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long:  "Get, set, and unset persisted CLI configuration values",
	}

	cmd.AddCommand(newConfigGetCommand())
	cmd.AddCommand(newConfigSetCommand())
	cmd.AddCommand(newConfigUnsetCommand())
	cmd.AddCommand(newConfigListCommand())

	return cmd
}

func newConfigGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if _, ok := configKeys[key]; !ok {
				return fmt.Errorf("%w: %q", constants.ErrUnknownConfigKey, key)
			}

			_, _ = fmt.Fprintln(os.Stdout, effectiveConfigValue(key))

			return nil
		},
	}
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			if _, ok := configKeys[key]; !ok {
				return fmt.Errorf("%w: %q", constants.ErrUnknownConfigKey, key)
			}

			if key == "server" {
				normalized, err := tallyclient.NormalizeBaseURL(value)
				if err != nil {
					return err
				}

				value = normalized

				// Mirror the value into the keyring entry the SDK resolves.
				keyring := NewViperKeyring()

				err = keyring.Set(constants.KeyringBaseURL, value)
				if err != nil {
					return err
				}
			}

			viper.Set(key, value)

			err := saveConfig()
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(os.Stdout, "Set %s to %s\n", key, value)

			return nil
		},
	}
}

func newConfigUnsetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unset KEY",
		Short: "Unset a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if _, ok := configKeys[key]; !ok {
				return fmt.Errorf("%w: %q", constants.ErrUnknownConfigKey, key)
			}

			if key == "server" {
				keyring := NewViperKeyring()

				err := keyring.Delete(constants.KeyringBaseURL)
				if err != nil {
					return err
				}
			}

			viper.Set(key, "")

			err := saveConfig()
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(os.Stdout, "Unset %s\n", key)

			return nil
		},
	}
}

func newConfigListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configuration values",
		RunE: func(cmd *cobra.Command, args []string) error {
			pairs := make(map[string]string, len(configKeys))
			for key := range configKeys {
				pairs[key] = effectiveConfigValue(key)
			}

			return renderKeyValues(pairs)
		},
	}
}

// effectiveConfigValue resolves a key the way command execution would,
// including the compile-time fallback for the server URL.
func effectiveConfigValue(key string) string {
	value := viper.GetString(key)
	if value == "" && key == "server" {
		return constants.DefaultBaseURL
	}

	return value
}
