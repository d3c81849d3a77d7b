package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/bitcloutplus/cli/pkg/node"
	"github.com/bitcloutplus/cli/pkg/util"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// NodeService is the part of the node API status reports on.
type NodeService interface {
	BaseURL() string
	HealthCheck(ctx context.Context) error
	GetProfileByPublicKey(ctx context.Context, publicKey string) (*node.Profile, error)
}

type statusComponent struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type statusResponse struct {
	Status     string            `json:"status"`
	Components []statusComponent `json:"components"`
}

// StatusCmd reports node health and the local session.
type StatusCmd struct {
	node        NodeService
	accounts    AccountStore
	identityURL string
}

type StatusInput struct {
	Output string
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the node and the logged in account",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringP("output", "o", "", "Output format (json)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a := getApp(cmd)
	output, _ := cmd.Flags().GetString("output")
	c := StatusCmd{node: a.node, accounts: a.accounts, identityURL: a.identityURL()}
	return c.Status(cmd.Context(), StatusInput{Output: output})
}

func (c StatusCmd) Status(ctx context.Context, in StatusInput) error {
	if in.Output != "" && in.Output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	status := statusResponse{Status: "operational"}

	nodeStatus := statusComponent{Name: "Node", Status: "operational", Detail: c.node.BaseURL()}
	if err := c.node.HealthCheck(ctx); err != nil {
		nodeStatus.Status = "unreachable"
		nodeStatus.Detail = fmt.Sprintf("%s (%v)", c.node.BaseURL(), err)
		status.Status = "unreachable"
	}
	status.Components = append(status.Components, nodeStatus,
		statusComponent{Name: "Identity", Status: "configured", Detail: c.identityURL})

	account := statusComponent{Name: "Account", Status: "logged_out"}
	if pk, err := c.accounts.ActivePublicKey(); err == nil {
		account.Status = "logged_in"
		account.Detail = pk
		if nodeStatus.Status == "operational" {
			if p, err := c.node.GetProfileByPublicKey(ctx, pk); err == nil && p.Username != "" {
				account.Detail = fmt.Sprintf("%s (%s)", p.Username, util.ShortKey(pk))
			}
		}
	}
	status.Components = append(status.Components, account)

	if in.Output == "json" {
		return util.PrintPrettyJSON(status)
	}
	printStatus(status)
	if status.Status != "operational" {
		return fmt.Errorf("node unreachable")
	}
	return nil
}

var statusDisplay = map[string]struct {
	label string
	rgb   pterm.RGB
}{
	"operational": {label: "Operational", rgb: pterm.NewRGB(31, 163, 130)},
	"configured":  {label: "Configured", rgb: pterm.NewRGB(36, 99, 235)},
	"logged_in":   {label: "Logged in", rgb: pterm.NewRGB(31, 163, 130)},
	"logged_out":  {label: "Logged out", rgb: pterm.NewRGB(245, 158, 11)},
	"unreachable": {label: "Unreachable", rgb: pterm.NewRGB(239, 68, 68)},
}

func getStatusDisplay(status string) (string, pterm.RGB) {
	if d, ok := statusDisplay[status]; ok {
		return d.label, d.rgb
	}
	return "Unknown", pterm.NewRGB(128, 128, 128)
}

func coloredDot(rgb pterm.RGB) string {
	return rgb.Sprint("●")
}

func printStatus(resp statusResponse) {
	label, rgb := getStatusDisplay(resp.Status)
	pterm.Println()
	pterm.Println("  " + fmt.Sprintf("Status: %s", rgb.Sprint(label)))
	pterm.Println()
	for _, comp := range resp.Components {
		compLabel, compColor := getStatusDisplay(comp.Status)
		pterm.Printf("  %s %-10s %-12s %s\n", coloredDot(compColor), comp.Name, compLabel, comp.Detail)
	}
	pterm.Println()
}
