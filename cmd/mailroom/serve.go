package main

import (
	"fmt"
	"os"

	"github.com/eduexamportal/mailroom/internal/server"
	"github.com/spf13/cobra"
)

var (
	servePort int
	serveMode string
)

// @title mailroom API
// @version 1.0
// @description Email template management and delivery for the exam portal
// @host localhost:8470
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the mailroom API and mail worker",
	Long: `Start the mailroom server with API and/or worker components.

Examples:
  mailroom serve                    # Run both API server and worker
  mailroom serve --mode server      # Run API server only
  mailroom serve --mode worker      # Run worker only
  mailroom serve --port 8080        # Override port

Environment variables:
  MAILROOM_SERVER_PORT         Server port (default: 8470)
  MAILROOM_DATABASE_DRIVER     Database driver: sqlite, postgres
  MAILROOM_DATABASE_DSN        Database connection string
  MAILROOM_QUEUE_TYPE          Queue type: memory, valkey
  MAILROOM_AUTH_JWT_SECRET     JWT signing secret
  MAILROOM_MAIL_DRIVER         Mail transport: log, smtp, sendgrid
  ADMIN_USERNAME               Bootstrap admin username
  ADMIN_PASSWORD               Bootstrap admin password`,
	Run: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (overrides config)")
	serveCmd.Flags().StringVarP(&serveMode, "mode", "m", "both", "Run mode: server, worker, or both")
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := server.Config{
		Port:    servePort,
		Mode:    serveMode,
		Version: Version,
	}

	if err := server.RunWithSignalHandling(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
