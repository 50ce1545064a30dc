package main

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/questboard/internal/domain"
	qbhttp "github.com/fyrsmithlabs/questboard/internal/http"
	"github.com/fyrsmithlabs/questboard/internal/leveling"
	"github.com/fyrsmithlabs/questboard/internal/xp"
)

var (
	levelsMax        int
	levelsRemote     bool
	leaderboardLimit int
	awardProjectID   string
)

func init() {
	levelsCmd.Flags().IntVar(&levelsMax, "max", 20, "highest level to show")
	levelsCmd.Flags().BoolVar(&levelsRemote, "remote", false, "ask the server instead of computing locally")
	leaderboardCmd.Flags().IntVar(&leaderboardLimit, "limit", 10, "number of users to show")
	awardCmd.Flags().StringVar(&awardProjectID, "project", "", "project the award is for")
}

var levelsCmd = &cobra.Command{
	Use:   "levels",
	Short: "Show the XP needed for each level",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if levelsMax < 1 {
			return fmt.Errorf("--max must be at least 1")
		}
		rows := leveling.Table(levelsMax)
		if levelsRemote {
			rows = nil
			path := "/api/v1/levels?max=" + strconv.Itoa(levelsMax)
			if err := apiClient().get(commandContext(cmd), path, &rows); err != nil {
				return err
			}
		}
		fmt.Fprint(cmd.OutOrStdout(), renderLevels(rows))
		return nil
	},
}

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Show the top users by XP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var entries []domain.LeaderboardEntry
		path := "/api/v1/leaderboard?limit=" + strconv.Itoa(leaderboardLimit)
		if err := apiClient().get(commandContext(cmd), path, &entries); err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), renderLeaderboard(entries))
		return nil
	},
}

var awardCmd = &cobra.Command{
	Use:   "award USER_ID AMOUNT REASON",
	Short: "Award XP to a user",
	Long: `Award XP to a user outside of project completion. The grant is
recorded against --user, which is required.

Examples:
  questctl award 3f1c 25 "helped in review"
  questctl award 3f1c 100 "hackathon" --project 9a0e`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("amount must be an integer: %w", err)
		}
		var res xp.Result
		if err := apiClient().post(commandContext(cmd), "/api/v1/xp/award", qbhttp.AwardRequest{
			UserID:    args[0],
			Amount:    amount,
			Reason:    args[2],
			ProjectID: awardProjectID,
		}, &res); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, field("Total XP", res.TotalXP))
		fmt.Fprintln(out, field("Level", res.NewLevel))
		if res.LeveledUp {
			fmt.Fprintln(out, healthyStyle.Render(fmt.Sprintf("Level up! %d → %d", res.OldLevel, res.NewLevel)))
		}
		return nil
	},
}

func limitQuery(limit int) string {
	if limit <= 0 {
		return ""
	}
	return "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
}
