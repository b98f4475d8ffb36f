package cmd

import (
	"fmt"
	"log"
	"strings"

	"eggmanager/internal/cli/ui"
	"eggmanager/pkg/sdk"

	"github.com/spf13/cobra"
)

var ownerID string

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "List and browse servers",
}

var serversListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all visible servers",
	Run: func(cmd *cobra.Command, args []string) {
		handleList()
	},
}

var serversStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the power state of every server",
	Run: func(cmd *cobra.Command, args []string) {
		handleStatus()
	},
}

var serversTuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Browse servers interactively",
	Run: func(cmd *cobra.Command, args []string) {
		RunDashboard()
	},
}

var powerCmd = &cobra.Command{
	Use:       "power [id] [start|stop|restart|kill]",
	Short:     "Send a power signal",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"start", "stop", "restart", "kill"},
	Run: func(cmd *cobra.Command, args []string) {
		handlePower(args[0], args[1])
	},
}

var commandCmd = &cobra.Command{
	Use:   "command [id] [command...]",
	Short: "Send a console command",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		handleCommand(args[0], strings.Join(args[1:], " "))
	},
}

var consoleCmd = &cobra.Command{
	Use:   "console [id]",
	Short: "Open the live server console",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		handleConsole(args[0])
	},
}

func init() {
	for _, c := range []*cobra.Command{powerCmd, commandCmd, consoleCmd} {
		c.Flags().StringVar(&ownerID, "owner", "", "Owner user ID (admins acting on another tenant)")
	}

	serversCmd.AddCommand(serversListCmd, serversStatusCmd, serversTuiCmd)
	RootCmd.AddCommand(serversCmd, powerCmd, commandCmd, consoleCmd)
}

func handleList() {
	servers, err := Client.ListServers()
	if err != nil {
		log.Fatalf("Error listing servers: %v", err)
	}

	fmt.Println("Servers:")
	for _, s := range servers {
		fmt.Printf("- %s (%s) [%s] Owner: %s Node: %s\n", s.Name, s.ID, s.State, s.OwnerName, s.Node)
	}
}

func handleStatus() {
	states, err := Client.ServerStates()
	if err != nil {
		log.Fatalf("Error fetching states: %v", err)
	}
	for _, s := range states {
		fmt.Printf("%-12s %-10s owner %s\n", s.ID, s.State, s.OwnerID)
	}
}

func printResult(action string, res *sdk.ActionResult) {
	if !res.Success {
		log.Fatalf("%s failed: %s", action, res.Message)
	}
	if res.Message != "" {
		fmt.Println(res.Message)
		return
	}
	fmt.Printf("%s sent.\n", action)
}

func handlePower(id, signal string) {
	res, err := Client.Power(id, ownerID, signal)
	if err != nil {
		log.Fatalf("Error sending %s: %v", signal, err)
	}
	printResult("Power signal", res)
}

func handleCommand(id, command string) {
	res, err := Client.SendCommand(id, ownerID, command)
	if err != nil {
		log.Fatalf("Error sending command: %v", err)
	}
	printResult("Command", res)
}

// findServer fills in display details for the console header. Unknown
// servers still open, with only the ID shown.
func findServer(id, owner string) sdk.Server {
	servers, err := Client.ListServers()
	if err == nil {
		for _, s := range servers {
			if s.ID == id && (owner == "" || s.OwnerID == owner) {
				return s
			}
		}
	}
	return sdk.Server{ID: id, Name: id, OwnerID: owner, State: "unknown"}
}

func handleConsole(id string) {
	if _, err := ui.RunLogs(Client, findServer(id, ownerID)); err != nil {
		log.Fatalf("Error running console: %v", err)
	}
}
