package main

import (
	"os"

	"github.com/spf13/cobra"

	_ "github.com/eduexamportal/mailroom/docs" // Load swagger docs
)

// Version is set via ldflags at build time
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "mailroom",
	Short: "mailroom - email templates and delivery for the exam portal",
	Long:  `mailroom stores the portal's email templates, decides who may use them, and renders and sends templated mail.`,
	Example: `  # Run the API and mail worker
  mailroom serve

  # Bootstrap the first administrator
  mailroom create-admin --username root --email root@example.edu

  # Try a template locally
  mailroom render --subject "Hi {firstName}" --body "<p>Hello {firstName}</p>" --var firstName=jane`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "server", Title: "Server Commands:"},
		&cobra.Group{ID: "templates", Title: "Template Commands:"},
	)

	serveCmd.GroupID = "server"
	createAdminCmd.GroupID = "server"
	renderCmd.GroupID = "templates"

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(createAdminCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
