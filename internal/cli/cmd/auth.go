package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var loginUser, loginPassword string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and save the API token",
	Run: func(cmd *cobra.Command, args []string) {
		handleLogin(loginUser, loginPassword)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved API token",
	Run: func(cmd *cobra.Command, args []string) {
		handleLogout()
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged in user",
	Run: func(cmd *cobra.Command, args []string) {
		handleWhoami()
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginUser, "username", "u", "", "Username")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Password (prompted when omitted)")

	RootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd)
}

func prompt(label string) string {
	fmt.Print(label)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.TrimSpace(line)
}

func handleLogin(username, password string) {
	if username == "" {
		username = prompt("Username: ")
	}
	if password == "" {
		password = prompt("Password: ")
	}

	resp, err := Client.Login(username, password)
	if err != nil {
		log.Fatalf("Error logging in: %v", err)
	}
	if err := saveToken(resp.Token); err != nil {
		log.Fatalf("Error saving token: %v", err)
	}
	fmt.Printf("Logged in as %s (%s).\n", resp.User.Username, resp.User.Role)
}

func handleLogout() {
	path, err := tokenPath()
	if err != nil {
		log.Fatalf("Error locating token: %v", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("Error removing token: %v", err)
	}
	fmt.Println("Logged out.")
}

func handleWhoami() {
	user, err := Client.Me()
	if err != nil {
		log.Fatalf("Error fetching user: %v", err)
	}
	fmt.Printf("Username: %s\nRole:     %s\nPanel:    %s\n", user.Username, user.Role, user.PanelURL)
}
