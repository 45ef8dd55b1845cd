package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/assetdesk/internal/cli/commands"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "assetdesk",
	Short: "AssetDesk CLI - manage scheduled IT asset reports",
	Long: `AssetDesk CLI is a command-line tool for the AssetDesk report scheduler.
It creates and edits recurring report schedules, triggers runs on demand and
shows their delivery history.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.assetdesk.yaml)")
	rootCmd.PersistentFlags().String("api-url", "", "AssetDesk API URL")
	_ = viper.BindPFlag("api_url", rootCmd.PersistentFlags().Lookup("api-url"))

	// Add commands
	rootCmd.AddCommand(commands.NewLoginCommand())
	rootCmd.AddCommand(commands.NewScheduleCommand())
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
		viper.SetConfigName(".assetdesk")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("ASSETDESK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// a missing config file is fine until the first login
	_ = viper.ReadInConfig()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
