package main

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/questboard/internal/completion"
	"github.com/fyrsmithlabs/questboard/internal/domain"
	qbhttp "github.com/fyrsmithlabs/questboard/internal/http"
)

var (
	createReq  qbhttp.CreateProjectRequest
	listStatus string
	listMine   bool
	listJoined bool
	listLimit  int
)

func init() {
	projectCmd.AddCommand(projectCreateCmd, projectListCmd, projectShowCmd, projectRosterCmd, projectActivityCmd)
	projectCmd.AddCommand(
		transitionCmd("join", "Join a project as a collaborator", "join"),
		transitionCmd("start", "Start an open project (creator only)", "start"),
		transitionCmd("cancel", "Cancel a project (creator only)", "cancel"),
		transitionCmd("channel", "Provision the project's collaboration channel (creator only)", "channel"),
		projectCompleteCmd,
	)

	f := projectCreateCmd.Flags()
	f.StringVar(&createReq.Title, "title", "", "project title")
	f.StringVar(&createReq.Description, "description", "", "project description")
	f.StringVar(&createReq.Difficulty, "difficulty", string(domain.DifficultyBeginner), "beginner, intermediate or advanced")
	f.IntVar(&createReq.MaxParticipants, "max", 4, "maximum participants including the creator")
	f.Int64Var(&createReq.XPReward, "xp", 50, "XP awarded to each participant on completion")
	f.StringSliceVar(&createReq.Tags, "tag", nil, "tag (repeatable)")
	f.StringSliceVar(&createReq.Skills, "skill", nil, "skill (repeatable)")
	_ = projectCreateCmd.MarkFlagRequired("title")

	projectListCmd.Flags().StringVar(&listStatus, "status", "", "filter by status")
	projectListCmd.Flags().BoolVar(&listMine, "mine", false, "only projects created by --user")
	projectListCmd.Flags().BoolVar(&listJoined, "joined", false, "only projects --user is a member of")
	projectListCmd.Flags().IntVar(&listLimit, "limit", 50, "projects to show")
}

var projectCmd = &cobra.Command{
	Use:     "project",
	Aliases: []string{"projects", "p"},
	Short:   "Manage projects",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a project as --user",
	Long: `Create a project. The acting user becomes its creator and first member.

Examples:
  questctl --user 3f1c project create --title "CLI rewrite" --difficulty intermediate --xp 120 --max 5`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var p domain.Project
		if err := apiClient().post(commandContext(cmd), "/api/v1/projects", createReq, &p); err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), renderProject(&p))
		return nil
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		q := url.Values{}
		if listStatus != "" {
			q.Set("status", listStatus)
		}
		if listMine || listJoined {
			if userID == "" {
				return fmt.Errorf("--mine and --joined require --user")
			}
			if listMine {
				q.Set("creator_id", userID)
			}
			if listJoined {
				q.Set("member_id", userID)
			}
		}
		if listLimit > 0 {
			q.Set("limit", strconv.Itoa(listLimit))
		}
		path := "/api/v1/projects"
		if len(q) > 0 {
			path += "?" + q.Encode()
		}
		var projects []*domain.Project
		if err := apiClient().get(commandContext(cmd), path, &projects); err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), renderProjects(projects))
		return nil
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show PROJECT_ID",
	Short: "Show a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var p domain.Project
		if err := apiClient().get(commandContext(cmd), projectPath(args[0], ""), &p); err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), renderProject(&p))
		return nil
	},
}

var projectRosterCmd = &cobra.Command{
	Use:   "roster PROJECT_ID",
	Short: "List a project's members",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var roster []domain.RosterEntry
		if err := apiClient().get(commandContext(cmd), projectPath(args[0], "roster"), &roster); err != nil {
			return err
		}
		rows := make([][]string, 0, len(roster))
		for _, e := range roster {
			rows = append(rows, []string{e.UserID, string(e.Role), e.JoinedAt.Local().Format("2006-01-02 15:04")})
		}
		fmt.Fprint(cmd.OutOrStdout(), table([]string{"USER", "ROLE", "JOINED"}, rows))
		return nil
	},
}

var projectActivityCmd = &cobra.Command{
	Use:   "activity PROJECT_ID",
	Short: "Show a project's activity log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var entries []domain.ActivityEntry
		if err := apiClient().get(commandContext(cmd), projectPath(args[0], "activity"), &entries); err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), renderActivity(entries))
		return nil
	},
}

var projectCompleteCmd = &cobra.Command{
	Use:   "complete PROJECT_ID",
	Short: "Complete a project and award XP to every member (creator only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var res completion.Result
		if err := apiClient().post(commandContext(cmd), projectPath(args[0], "complete"), nil, &res); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, healthyStyle.Render("Project completed"))
		rows := make([][]string, 0, len(res.Participants))
		for _, p := range res.Participants {
			status := healthyStyle.Render(fmt.Sprintf("+%d", res.XPAwarded))
			if !p.Awarded {
				status = errorStyle.Render("failed")
			}
			level := fmt.Sprint(p.NewLevel)
			if p.LeveledUp {
				level = warningStyle.Render(fmt.Sprintf("%d → %d", p.OldLevel, p.NewLevel))
			}
			rows = append(rows, []string{p.UserID, status, fmt.Sprint(p.TotalXP), level})
		}
		fmt.Fprint(out, table([]string{"USER", "XP", "TOTAL", "LEVEL"}, rows))
		for _, e := range res.StepErrors {
			fmt.Fprintln(out, warningStyle.Render("warning: ")+e)
		}
		return nil
	},
}

// transitionCmd builds a POST /projects/:id/<action> command that prints the result.
func transitionCmd(use, short, action string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " PROJECT_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := projectPath(args[0], action)
			if action == "join" {
				var entry domain.RosterEntry
				if err := apiClient().post(commandContext(cmd), path, nil, &entry); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), field("Joined as", entry.Role))
				return nil
			}
			var p domain.Project
			if err := apiClient().post(commandContext(cmd), path, nil, &p); err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderProject(&p))
			return nil
		},
	}
}

func projectPath(id, action string) string {
	path := "/api/v1/projects/" + url.PathEscape(id)
	if action != "" {
		path += "/" + action
	}
	return path
}
