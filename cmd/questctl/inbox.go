package main

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/questboard/internal/domain"
	qbhttp "github.com/fyrsmithlabs/questboard/internal/http"
)

var (
	inboxUnread bool
	inboxLimit  int
)

func init() {
	inboxCmd.Flags().BoolVar(&inboxUnread, "unread", false, "only unread notifications")
	inboxCmd.Flags().IntVar(&inboxLimit, "limit", 20, "notifications to show")
	inboxCmd.AddCommand(readCmd(true), readCmd(false), readAllCmd)
}

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "Show --user's notifications",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := apiClient()
		ctx := commandContext(cmd)

		var count qbhttp.UnreadCountResponse
		if err := c.get(ctx, "/api/v1/notifications/unread_count", &count); err != nil {
			return err
		}
		q := url.Values{}
		if inboxUnread {
			q.Set("unread_only", "true")
		}
		if inboxLimit > 0 {
			q.Set("limit", strconv.Itoa(inboxLimit))
		}
		path := "/api/v1/notifications"
		if len(q) > 0 {
			path += "?" + q.Encode()
		}
		var items []domain.Notification
		if err := c.get(ctx, path, &items); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), field("Unread", count.Unread))
		fmt.Fprint(cmd.OutOrStdout(), renderInbox(items))
		return nil
	},
}

func readCmd(read bool) *cobra.Command {
	action := "read"
	if !read {
		action = "unread"
	}
	return &cobra.Command{
		Use:   action + " NOTIFICATION_ID",
		Short: "Mark a notification as " + action,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("notification id must be an integer: %w", err)
			}
			var resp qbhttp.ReadStateResponse
			path := "/api/v1/notifications/" + args[0] + "/" + action
			if err := apiClient().post(commandContext(cmd), path, nil, &resp); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), field(fmt.Sprintf("Notification %d read", resp.ID), resp.IsRead))
			return nil
		},
	}
}

var readAllCmd = &cobra.Command{
	Use:   "read-all",
	Short: "Mark every notification as read",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp qbhttp.MarkAllReadResponse
		if err := apiClient().post(commandContext(cmd), "/api/v1/notifications/read_all", nil, &resp); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), field("Marked read", resp.Updated))
		return nil
	},
}
