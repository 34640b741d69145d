package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// NewLoginCommand creates the login command.
func NewLoginCommand() *cobra.Command {
	var (
		identifier string
		password   string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login to the Tally backend",
		Long:  "Authenticate with the Tally backend and persist the credential pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			if identifier == "" {
				reader := bufio.NewReader(os.Stdin)
				fmt.Print("Identifier: ")
				identifier, _ = reader.ReadString('\n')
				identifier = strings.TrimSpace(identifier)
			}

			if password == "" {
				fmt.Print("Password: ")

				bytePassword, err := term.ReadPassword(int(syscall.Stdin))
				if err != nil {
					return fmt.Errorf("failed to read password: %w", err)
				}

				password = string(bytePassword)

				fmt.Println()
			}

			client, err := createClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}

			result, err := client.Login(context.Background(), identifier, password)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(os.Stdout, "Successfully logged in as %s\n", identifier)

			if len(result.User) > 0 && structuredOutput() {
				return renderBody(result.User)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&identifier, "identifier", "u", "", "login identifier")
	cmd.Flags().StringVarP(&password, "password", "p", "", "login password")

	return cmd
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Logout from the Tally backend",
		Long:  "Destroy the stored credential pair and drop all cached responses",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := createClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}

			err = client.Logout(context.Background())
			if err != nil {
				return err
			}

			_, _ = os.Stdout.WriteString("Successfully logged out\n")

			return nil
		},
	}
}
