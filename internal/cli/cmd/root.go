package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"eggmanager/internal/config"
	"eggmanager/pkg/sdk"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const tokenFileName = "cli_token"

var (
	Client *sdk.Client
	v      = viper.New()
)

var RootCmd = &cobra.Command{
	Use:   "eggmanager-cli",
	Short: "CLI for the eggmanager daemon",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		token := v.GetString("token")
		if token == "" {
			token = loadToken()
		}
		Client = sdk.NewClient(v.GetString("url"), token)
	},
	Run: func(cmd *cobra.Command, args []string) {
		RunDashboard()
	},
}

func Execute() {
	RootCmd.PersistentFlags().String("url", "http://localhost:3000", "URL of the eggmanager daemon")
	RootCmd.PersistentFlags().String("token", "", "API token (defaults to the one saved by login)")
	_ = v.BindPFlag("url", RootCmd.PersistentFlags().Lookup("url"))
	_ = v.BindPFlag("token", RootCmd.PersistentFlags().Lookup("token"))
	v.SetEnvPrefix("EGGMANAGER")
	v.AutomaticEnv()

	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func tokenPath() (string, error) {
	dir, err := config.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, tokenFileName), nil
}

func loadToken() string {
	path, err := tokenPath()
	if err != nil {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func saveToken(token string) error {
	path, err := tokenPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(token), 0600)
}
