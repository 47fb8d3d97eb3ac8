package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/warp/retention-engine/generic"
	"github.com/warp/retention-engine/retention"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print retention reports from the configured store",
}

var reportAgingCmd = &cobra.Command{
	Use:   "aging",
	Short: "Print outstanding retention by age",
	Long: `Print outstanding retention bucketed by age as of today (or --as-of).

Examples:
  retention report aging
  retention report aging --project harbour-bridge --as-of 2024-12-31`,
	Args: cobra.NoArgs,
	RunE: runReportAging,
}

var reportSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print retained, released and outstanding totals",
	Args:  cobra.NoArgs,
	RunE:  runReportSummary,
}

var reportAlertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Print due, overdue and warranty-expiring retention",
	Args:  cobra.NoArgs,
	RunE:  runReportAlerts,
}

func init() {
	for _, cmd := range []*cobra.Command{reportAgingCmd, reportSummaryCmd, reportAlertsCmd} {
		cmd.Flags().String("as-of", "", "report date (YYYY-MM-DD), default today")
		cmd.Flags().String("project", "", "only this project")
		cmd.Flags().String("party", "", "only this party")
		cmd.Flags().String("type", "", "only RECEIVABLE or PAYABLE")
		reportCmd.AddCommand(cmd)
	}
}

// reportSetup opens the store and applies --as-of to the service clock.
func reportSetup(cmd *cobra.Command) (*environment, retention.AccountFilter, error) {
	env, err := setup()
	if err != nil {
		return nil, retention.AccountFilter{}, err
	}

	if asOf, _ := cmd.Flags().GetString("as-of"); asOf != "" {
		day, err := generic.ParseDate(asOf)
		if err != nil {
			env.Close()
			return nil, retention.AccountFilter{}, fmt.Errorf("invalid --as-of: %w", err)
		}
		env.service.Today = func() generic.TimePoint { return day }
	}

	project, _ := cmd.Flags().GetString("project")
	party, _ := cmd.Flags().GetString("party")
	kind, _ := cmd.Flags().GetString("type")
	return env, retention.AccountFilter{
		ProjectID:     project,
		PartyID:       party,
		RetentionType: retention.RetentionType(kind),
	}, nil
}

func runReportAging(cmd *cobra.Command, _ []string) error {
	env, filter, err := reportSetup(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	aging, err := env.service.Aging(cmd.Context(), filter)
	if err != nil {
		return err
	}
	printAging(cmd.OutOrStdout(), env.service.Today(), aging)
	return nil
}

func runReportSummary(cmd *cobra.Command, _ []string) error {
	env, filter, err := reportSetup(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	summary, err := env.service.Summary(cmd.Context(), filter)
	if err != nil {
		return err
	}
	printSummary(cmd.OutOrStdout(), summary)
	return nil
}

func runReportAlerts(cmd *cobra.Command, _ []string) error {
	env, filter, err := reportSetup(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	alerts, err := env.service.Alerts(cmd.Context(), filter, alertOptions(env.cfg))
	if err != nil {
		return err
	}
	printAlerts(cmd.OutOrStdout(), alerts)
	return nil
}

// =============================================================================
// FORMATTING
// =============================================================================

func printAging(w io.Writer, asOf generic.TimePoint, aging retention.Aging) {
	fmt.Fprintf(w, "Retention aging as of %s\n\n", asOf)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "BUCKET\tACCOUNTS\tBALANCE\t")
	rows := []struct {
		label  string
		bucket retention.AgingBucket
	}{
		{"0-30 days", aging.Current},
		{"31-60 days", aging.ThirtyDays},
		{"61-90 days", aging.SixtyDays},
		{"90+ days", aging.NinetyDays},
		{"Overdue", aging.Overdue},
		{"Total", aging.Total},
	}
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%s\t\n", row.label, row.bucket.Count, generic.FormatCurrency(row.bucket.Amount))
	}
	tw.Flush()
}

func printSummary(w io.Writer, s retention.Summary) {
	fmt.Fprintf(w, "Held:     %s\n", generic.FormatCurrency(s.TotalHeld))
	fmt.Fprintf(w, "Released: %s\n", generic.FormatCurrency(s.TotalReleased))
	fmt.Fprintf(w, "Balance:  %s\n\n", generic.FormatCurrency(s.TotalBalance))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "GROUP\tACCOUNTS\tRETAINED\tRELEASED\tBALANCE\t")
	line := func(label string, t retention.Totals) {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t\n", label, t.Count,
			generic.FormatCurrency(t.Retained), generic.FormatCurrency(t.Released), generic.FormatCurrency(t.Balance))
	}
	line("Receivable", s.Receivables)
	line("Payable", s.Payables)
	for _, st := range retention.AllStatuses {
		line(string(st), s.ByStatus[st])
	}
	tw.Flush()
}

func printAlerts(w io.Writer, alerts []retention.Alert) {
	if len(alerts) == 0 {
		fmt.Fprintln(w, "No alerts.")
		return
	}
	sort.SliceStable(alerts, func(i, j int) bool { return alerts[i].AlertType < alerts[j].AlertType })

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tACCOUNT\tPROJECT\tDUE\tMESSAGE")
	for _, a := range alerts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", a.AlertType, a.AccountID, a.ProjectID, a.ScheduledReleaseDate, a.Message)
	}
	tw.Flush()
}
