package cmd

import (
	"fmt"
	"time"

	"pricedeck/pkg/api"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var statusCmd = &cobra.Command{
	Use:   "status [share_id]",
	Short: "Get status of a report",
	Long: `Retrieve a pricing report by its share ID.

Prints the report's current state (queued, running, ready, error) and,
once ready, the nightly pricing summary. With --watch the command polls
until the report reaches a terminal state.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		shareID := args[0]

		url := viper.GetString("url")
		key := viper.GetString("key")
		watch, _ := cmd.Flags().GetBool("watch")
		interval, _ := cmd.Flags().GetDuration("interval")

		client := NewReportClient(url, key)

		for {
			report, err := client.GetReport(shareID)
			if err != nil {
				if apiErr, ok := err.(*APIError); ok {
					cmd.Printf("Request failed with status code: %d\n", apiErr.StatusCode)
				} else {
					cmd.Printf("Failed to send request: %v\n", err)
				}
				return
			}

			printReport(cmd, *report)

			if !watch || report.Status == "ready" || report.Status == "error" {
				return
			}

			cmd.Printf("\n%sPolling again in %s...%s\n\n", colorDim, interval, colorReset)
			time.Sleep(interval)
		}
	},
}

func printReport(cmd *cobra.Command, report api.ReportResponse) {
	icon := statusIcon(report.Status)
	cmd.Printf("%s %sReport Details%s\n", icon, colorBold, colorReset)
	cmd.Println("──────────────────────────────")

	cmd.Printf("%sShare ID:%s    %s\n", colorDim, colorReset, report.ShareID)
	cmd.Printf("%sStatus:%s      %s\n", colorDim, colorReset, colorizeStatus(report.Status))

	if report.Address != "" {
		cmd.Printf("%sAddress:%s     %s\n", colorDim, colorReset, report.Address)
	}
	if report.Attributes.InputMode == "url" {
		cmd.Printf("%sListing:%s     %s\n", colorDim, colorReset, report.Attributes.ListingURL)
	}
	cmd.Printf("%sDates:%s       %s → %s\n", colorDim, colorReset, report.StartDate, report.EndDate)
	cmd.Printf("%sAttempts:%s    %d\n", colorDim, colorReset, report.Attempts)

	if report.Error != nil {
		cmd.Printf("%sError:%s       %s%s%s\n", colorDim, colorReset, colorRed, *report.Error, colorReset)
	}

	if report.Status == "ready" && len(report.Summary) > 0 {
		cmd.Printf("%sSummary:%s\n%s\n", colorDim, colorReset, string(report.Summary))
	}

	cmd.Printf("%sCreated:%s     %s\n", colorDim, colorReset, formatTimeWithRelative(report.CreatedAt))
	if report.Status == "ready" || report.Status == "error" {
		duration := report.UpdatedAt.Sub(report.CreatedAt)
		cmd.Printf("%sFinished:%s    %s %s(%s)%s\n", colorDim, colorReset,
			formatTimeWithRelative(report.UpdatedAt),
			colorCyan, formatDuration(duration), colorReset)
	}
}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

func statusIcon(status string) string {
	switch status {
	case "ready":
		return colorGreen + "✓" + colorReset
	case "error":
		return colorRed + "✗" + colorReset
	case "running":
		return colorYellow + "⏳" + colorReset
	case "queued":
		return colorCyan + "◯" + colorReset
	default:
		return "•"
	}
}

func colorizeStatus(status string) string {
	icon := statusIcon(status)
	switch status {
	case "ready":
		return icon + " " + colorGreen + status + colorReset
	case "error":
		return icon + " " + colorRed + status + colorReset
	case "running":
		return icon + " " + colorYellow + status + colorReset
	case "queued":
		return icon + " " + colorCyan + status + colorReset
	default:
		return status
	}
}

func formatTimeWithRelative(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	relative := relativeTime(t)
	return fmt.Sprintf("%s %s(%s ago)%s", t.Format("Mon, 02 Jan 2006 15:04:05 MST"), colorDim, relative, colorReset)
}

func relativeTime(t time.Time) string {
	duration := time.Since(t)

	if duration < time.Minute {
		return fmt.Sprintf("%ds", int(duration.Seconds()))
	} else if duration < time.Hour {
		return fmt.Sprintf("%dm", int(duration.Minutes()))
	} else if duration < 24*time.Hour {
		return fmt.Sprintf("%dh", int(duration.Hours()))
	} else {
		days := int(duration.Hours() / 24)
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	} else if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	} else if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

func init() {
	statusCmd.Flags().BoolP("watch", "w", false, "Poll until the report reaches a terminal state")
	statusCmd.Flags().Duration("interval", 3*time.Second, "Polling interval used with --watch")

	rootCmd.AddCommand(statusCmd)
}
