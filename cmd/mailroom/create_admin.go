package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/eduexamportal/mailroom/internal/access"
	"github.com/eduexamportal/mailroom/internal/config"
	"github.com/eduexamportal/mailroom/internal/db"
	"github.com/eduexamportal/mailroom/internal/logger"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	adminUsername  string
	adminEmail     string
	adminFirstName string
	adminLastName  string
)

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an administrator account",
	Long: `Creates an admin user in the configured database. The password is read
from the terminal, or from MAILROOM_ADMIN_PASSWORD when stdin is not a terminal.

Examples:
  mailroom create-admin --username root --email root@example.edu`,
	Args: cobra.NoArgs,
	RunE: runCreateAdmin,
}

func init() {
	createAdminCmd.Flags().StringVarP(&adminUsername, "username", "u", "", "Admin username (required)")
	createAdminCmd.Flags().StringVarP(&adminEmail, "email", "e", "", "Admin email (required)")
	createAdminCmd.Flags().StringVar(&adminFirstName, "first-name", "Admin", "First name")
	createAdminCmd.Flags().StringVar(&adminLastName, "last-name", "", "Last name")
	_ = createAdminCmd.MarkFlagRequired("username")
	_ = createAdminCmd.MarkFlagRequired("email")
}

func runCreateAdmin(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.Init(cfg.Log.Format, "warn")

	password, err := readPassword(cmd)
	if err != nil {
		return err
	}
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	database, err := db.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	user, err := db.CreateUser(database, db.NewUser{
		Username:  adminUsername,
		Email:     adminEmail,
		Password:  password,
		FirstName: adminFirstName,
		LastName:  adminLastName,
		Role:      access.RoleAdmin,
	})
	if errors.Is(err, db.ErrUserExists) {
		return fmt.Errorf("a user named %q or with email %q already exists", adminUsername, adminEmail)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created admin %s (%s)\n", user.Username, user.ID)
	return nil
}

func readPassword(cmd *cobra.Command) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		if p := os.Getenv("MAILROOM_ADMIN_PASSWORD"); p != "" {
			return p, nil
		}
		return "", fmt.Errorf("stdin is not a terminal; set MAILROOM_ADMIN_PASSWORD")
	}

	fmt.Fprint(cmd.OutOrStdout(), "Password: ")
	first, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	fmt.Fprint(cmd.OutOrStdout(), "Confirm password: ")
	second, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	if string(first) != string(second) {
		return "", fmt.Errorf("passwords do not match")
	}
	return strings.TrimRight(string(first), "\r\n"), nil
}
