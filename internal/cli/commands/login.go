package commands

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/assetdesk/internal/api/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewLoginCommand() *cobra.Command {
	var (
		username string
		password string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the API token in the CLI config",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Password: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("failed to read password: %v", err)
				}
				password = strings.TrimSpace(line)
			}

			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			token, err := c.Login(username, password)
			if err != nil {
				return fmt.Errorf("failed to log in: %v", err)
			}

			viper.Set("token", token)
			if err := saveConfig(); err != nil {
				return fmt.Errorf("failed to save token: %v", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "admin", "Username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (prompted when empty)")

	return cmd
}

// saveConfig writes the viper state back to the file it was read from, or to
// ~/.assetdesk.yaml when no config file exists yet.
func saveConfig() error {
	if file := viper.ConfigFileUsed(); file != "" {
		return viper.WriteConfigAs(file)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	return viper.WriteConfigAs(filepath.Join(home, ".assetdesk.yaml"))
}
