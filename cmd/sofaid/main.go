package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func init() {
	// Load .env before flags and config are read.
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("sofaid: .env load: %v", err)
		}
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sofaid",
		Short: "SofAI chat API in front of a text-generation model",
		Long:  "sofaid serves a multi-model chat API with per-session history, plus optional Discord and Slack bridges.",
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newChatCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sofaid %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
