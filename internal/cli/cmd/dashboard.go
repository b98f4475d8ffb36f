package cmd

import (
	"fmt"
	"log"

	"eggmanager/internal/cli/ui"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Open the web dashboard in a browser",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Opening %s\n", Client.BaseURL())
		if err := browser.OpenURL(Client.BaseURL()); err != nil {
			log.Fatalf("Error opening browser: %v", err)
		}
	},
}

func init() {
	RootCmd.AddCommand(dashboardCmd)
}

// RunDashboard alternates between the server list and a server's console
// until the user quits.
func RunDashboard() {
	for {
		server, err := ui.RunServerList(Client)
		if err != nil {
			log.Fatalf("Error listing servers: %v", err)
		}
		if server == nil {
			return
		}
		back, err := ui.RunLogs(Client, *server)
		if err != nil {
			log.Printf("Error running console: %v", err)
			continue
		}
		if !back {
			return
		}
	}
}
