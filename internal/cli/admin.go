package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/memeboard/internal/auth"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage admin accounts",
}

func init() {
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an admin account",
		Run:   runAdminCreate,
	}

	create.Flags().StringP("username", "u", "", "Username (required)")
	create.Flags().StringP("password", "p", "", "Password, at least 8 characters (required)")

	create.MarkFlagRequired("username")
	create.MarkFlagRequired("password")

	adminCmd.AddCommand(create)
	RootCmd.AddCommand(adminCmd)
}

func runAdminCreate(cmd *cobra.Command, args []string) {
	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")

	cfg := loadConfig()
	s := openStore(cmd.Context(), cfg)
	defer s.Close()

	// Creating an account does not issue tokens.
	svc := auth.NewService(s, nil)
	if err := svc.CreateAdmin(cmd.Context(), username, password); err != nil {
		exitErr("admin create", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"username":%q}`+"\n", username)
}
