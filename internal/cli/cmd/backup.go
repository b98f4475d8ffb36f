package cmd

import (
	"fmt"
	"log"

	"eggmanager/pkg/sdk"

	"github.com/spf13/cobra"
)

var backupOwner string

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage server backups",
}

var backupCreateCmd = &cobra.Command{
	Use:   "create [serverId] [name]",
	Short: "Create a backup",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		name := ""
		if len(args) > 1 {
			name = args[1]
		}
		handleBackupCreate(args[0], name)
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list [serverId]",
	Short: "List backups",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		handleListBackups(args[0])
	},
}

var backupDeleteCmd = &cobra.Command{
	Use:   "delete [serverId] [backupUuid]",
	Short: "Delete a backup",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		handleDeleteBackup(args[0], args[1])
	},
}

func init() {
	backupCmd.PersistentFlags().StringVar(&backupOwner, "owner", "", "Owner user ID (admins acting on another tenant)")
	backupCmd.AddCommand(backupCreateCmd, backupListCmd, backupDeleteCmd)
	RootCmd.AddCommand(backupCmd)
}

func handleBackupCreate(serverID, name string) {
	res, err := Client.CreateBackup(serverID, backupOwner, name)
	if err != nil {
		log.Fatalf("Error creating backup: %v", err)
	}
	printResult("Backup", res)
}

func handleListBackups(serverID string) {
	backups, err := Client.ListBackups(serverID, backupOwner)
	if err != nil {
		log.Fatalf("Error listing backups: %v", err)
	}
	printBackups(backups)
}

func printBackups(backups []sdk.Backup) {
	fmt.Println("Backups:")
	for _, b := range backups {
		state := "ok"
		if !b.Successful {
			state = "incomplete"
		}
		fmt.Printf("- %s %s (%.2f MB, %s) %s\n", b.UUID, b.Name, float64(b.Bytes)/1024/1024, state, b.CreatedAt.Format("2006-01-02 15:04"))
	}
}

func handleDeleteBackup(serverID, backupUUID string) {
	res, err := Client.DeleteBackup(serverID, backupOwner, backupUUID)
	if err != nil {
		log.Fatalf("Error deleting backup: %v", err)
	}
	printResult("Backup delete", res)
}
