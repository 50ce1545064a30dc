package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/questboard/internal/domain"
	qbhttp "github.com/fyrsmithlabs/questboard/internal/http"
)

var userHistoryLimit int

func init() {
	userCmd.AddCommand(userCreateCmd, userShowCmd, userActivityCmd, userXPCmd)
	userActivityCmd.Flags().IntVar(&userHistoryLimit, "limit", 20, "entries to show")
	userXPCmd.Flags().IntVar(&userHistoryLimit, "limit", 20, "transactions to show")
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userCreateCmd = &cobra.Command{
	Use:   "create USERNAME",
	Short: "Create a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var u domain.User
		if err := apiClient().post(commandContext(cmd), "/api/v1/users", qbhttp.CreateUserRequest{Username: args[0]}, &u); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), field("ID", u.ID))
		fmt.Fprintln(cmd.OutOrStdout(), field("Username", u.Username))
		return nil
	},
}

var userShowCmd = &cobra.Command{
	Use:   "show [USER_ID]",
	Short: "Show a user's level progress (defaults to --user)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := userArg(args)
		if err != nil {
			return err
		}
		var p qbhttp.ProgressResponse
		if err := apiClient().get(commandContext(cmd), "/api/v1/users/"+url.PathEscape(id)+"/progress", &p); err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), renderProgress(p.Username, p.Progress))
		return nil
	},
}

var userActivityCmd = &cobra.Command{
	Use:   "activity [USER_ID]",
	Short: "Show a user's activity log",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := userArg(args)
		if err != nil {
			return err
		}
		var entries []domain.ActivityEntry
		path := "/api/v1/users/" + url.PathEscape(id) + "/activity" + limitQuery(userHistoryLimit)
		if err := apiClient().get(commandContext(cmd), path, &entries); err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), renderActivity(entries))
		return nil
	},
}

var userXPCmd = &cobra.Command{
	Use:   "xp [USER_ID]",
	Short: "Show a user's XP transactions",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := userArg(args)
		if err != nil {
			return err
		}
		var history []domain.XPTransaction
		path := "/api/v1/users/" + url.PathEscape(id) + "/xp" + limitQuery(userHistoryLimit)
		if err := apiClient().get(commandContext(cmd), path, &history); err != nil {
			return err
		}
		rows := make([][]string, 0, len(history))
		for _, tx := range history {
			rows = append(rows, []string{
				tx.CreatedAt.Local().Format("2006-01-02 15:04"),
				fmt.Sprintf("+%d", tx.Amount),
				fmt.Sprint(tx.TotalAfter),
				tx.Reason,
			})
		}
		fmt.Fprint(cmd.OutOrStdout(), table([]string{"WHEN", "AMOUNT", "TOTAL", "REASON"}, rows))
		return nil
	},
}

// userArg returns the explicit user argument or falls back to --user.
func userArg(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if userID == "" {
		return "", fmt.Errorf("a user ID argument or --user is required")
	}
	return userID, nil
}
