// Package main implements questctl, a command-line client for the questd API.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	qbhttp "github.com/fyrsmithlabs/questboard/internal/http"
)

var (
	// serverURL is the base URL of the questd HTTP server
	serverURL string
	// userID is sent as the caller identity
	userID  string
	timeout time.Duration
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errorKind(err) == qbhttp.KindUnauthenticated {
			fmt.Fprintln(os.Stderr, "hint: pass --user or set QUESTBOARD_USER")
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "questctl",
	Short: "CLI for the questboard API",
	Long: `questctl talks to a running questd: create users and projects, join and
complete projects, award XP and read notifications.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("QUESTBOARD_SERVER", "http://127.0.0.1:8420"), "questd server URL")
	rootCmd.PersistentFlags().StringVar(&userID, "user", os.Getenv("QUESTBOARD_USER"), "acting user ID")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")

	rootCmd.AddCommand(healthCmd, levelsCmd, leaderboardCmd, awardCmd)
	rootCmd.AddCommand(userCmd, projectCmd, inboxCmd)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func apiClient() *client {
	return newClient(serverURL, userID, timeout)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check questd health",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp qbhttp.HealthResponse
		if err := apiClient().get(commandContext(cmd), "/health", &resp); err != nil {
			return err
		}
		style := healthyStyle
		if resp.Status != "ok" {
			style = errorStyle
		}
		fmt.Fprintln(cmd.OutOrStdout(), labelStyle.Render("Status:")+" "+style.Render(resp.Status))
		fmt.Fprintln(cmd.OutOrStdout(), field("Store", resp.Store))
		fmt.Fprintln(cmd.OutOrStdout(), field("Server", serverURL))
		return nil
	},
}
