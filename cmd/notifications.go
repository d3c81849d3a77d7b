package cmd

import (
	"context"
	"fmt"

	"github.com/bitcloutplus/cli/pkg/identity"
	"github.com/bitcloutplus/cli/pkg/node"
	"github.com/bitcloutplus/cli/pkg/notifications"
	"github.com/bitcloutplus/cli/pkg/util"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// NotificationCounter returns the active account's unread notifications.
type NotificationCounter interface {
	Count(ctx context.Context) (*node.UnreadNotificationsCount, error)
}

type NotificationsCmd struct {
	notifications NotificationCounter
}

type NotificationsCountInput struct {
	Output string
}

func (c NotificationsCmd) Count(ctx context.Context, in NotificationsCountInput) error {
	if in.Output != "" && in.Output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}
	count, err := c.notifications.Count(ctx)
	if err != nil {
		return err
	}
	if in.Output == "json" {
		return util.PrintPrettyJSON(count)
	}
	switch count.NotificationsCount {
	case 0:
		pterm.Info.Println("No unread notifications")
	case 1:
		pterm.Info.Println("1 unread notification")
	default:
		pterm.Info.Printf("%d unread notifications\n", count.NotificationsCount)
	}
	return nil
}

var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Show the number of unread notifications",
	Args:  cobra.NoArgs,
	RunE:  runNotificationsCount,
}

var notificationsReadCmd = &cobra.Command{
	Use:   "read",
	Short: "Mark all notifications as read",
	Args:  cobra.NoArgs,
	RunE:  runNotificationsRead,
}

func init() {
	notificationsCmd.Flags().StringP("output", "o", "", "Output format (json)")
	notificationsCmd.AddCommand(notificationsReadCmd)
	rootCmd.AddCommand(notificationsCmd)
}

func runNotificationsCount(cmd *cobra.Command, args []string) error {
	a := getApp(cmd)
	output, _ := cmd.Flags().GetString("output")
	c := NotificationsCmd{notifications: notifications.NewService(a.node, a.accounts, a.log)}
	return c.Count(cmd.Context(), NotificationsCountInput{Output: output})
}

// runNotificationsRead asks the provider for a JWT and uses it to mark the
// notifications read.
func runNotificationsRead(cmd *cobra.Command, args []string) error {
	a := getApp(cmd)
	if _, err := a.accounts.ActivePublicKey(); err != nil {
		pterm.Error.Println("No account is logged in. Run 'plus accounts login' first.")
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	s, err := newSession(a, "/", false)
	if err != nil {
		return err
	}
	defer s.close()
	svc := notifications.NewService(a.node, a.accounts, a.log)
	if err := s.start(ctx, sessionHandlers{Notifications: svc}); err != nil {
		return err
	}

	id, err := s.requester.Jwt(ctx)
	if err != nil {
		return fmt.Errorf("request jwt: %w", err)
	}
	return s.await(ctx, func(e identity.Event) (bool, error) {
		switch e.Type {
		case identity.EventNotificationsRead:
			pterm.Success.Println("Notifications marked as read")
			return true, nil
		case identity.EventHandlerFailed:
			return true, e.Err
		case identity.EventMalformed:
			return true, fmt.Errorf("unexpected identity response: %s", e.Text)
		}
		return false, nil
	}, func() []string { return []string{id} })
}
