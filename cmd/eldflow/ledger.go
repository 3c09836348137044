package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/opensass/eldflow/internal/config"
	"github.com/opensass/eldflow/internal/eld"
	"github.com/opensass/eldflow/internal/storage"
	"github.com/spf13/cobra"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect duty-status ledgers",
	Long:  `Rebuild a trip's duty-status ledger and report its totals, overlaps and dropped records.`,
}

var ledgerShowCmd = &cobra.Command{
	Use:     "show TRIP_ID",
	Aliases: []string{"summary"},
	Short:   "Show the stored ledger of a trip",
	Example: `  eldflow -c config.yaml ledger show 6f1c2a7e-8d0b-4a55-9a3e-0c2f9b5d1e44`,
	Args:    cobra.ExactArgs(1),
	RunE:    runLedgerShow,
}

var ledgerCheckCmd = &cobra.Command{
	Use:   "check FILE",
	Short: "Check an exported ledger file",
	Long: `Check a JSON array of stored records (start_hour, end_hour, status, location,
note) without touching storage.`,
	Example: `  eldflow ledger check trip-logs.json`,
	Args:    cobra.ExactArgs(1),
	RunE:    runLedgerCheck,
}

func init() {
	ledgerCmd.AddCommand(ledgerShowCmd)
	ledgerCmd.AddCommand(ledgerCheckCmd)
	rootCmd.AddCommand(ledgerCmd)
}

func runLedgerShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := openStorage(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	trip, err := store.Trips().Get(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to load trip %s: %w", args[0], err)
	}

	logs, err := store.EldLogs().ListByTrip(ctx, trip.DriverID, trip.ID)
	if err != nil {
		return fmt.Errorf("failed to load logs: %w", err)
	}

	records := make([]eld.Record, 0, len(logs))
	for _, log := range logs {
		records = append(records, storage.RecordFromLog(log))
	}

	fmt.Printf("Trip %s (%s, %s)\n", trip.ID, trip.CurrentLocation, trip.Status)
	printLedger(trip.ID, records)
	return nil
}

func runLedgerCheck(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	var records []eld.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to parse %s: %w", args[0], err)
	}

	red := color.New(color.FgRed)
	for i, r := range records {
		status, ok := eld.ParseStatus(r.Status)
		if !ok {
			_, _ = red.Printf("❌ record %d: unknown status %q\n", i, r.Status)
			continue
		}
		_, err := eld.Validate(eld.Candidate{
			StartHour: r.StartHour,
			EndHour:   r.EndHour,
			Status:    status,
			Location:  r.Location,
			Note:      r.Note,
		})
		if err != nil {
			_, _ = red.Printf("❌ record %d: %v\n", i, err)
		}
	}

	printLedger(args[0], records)
	return nil
}

// printLedger rebuilds a ledger from records and prints it with totals.
func printLedger(tripID string, records []eld.Record) {
	ledger, dropped := eld.FromEntriesReport(tripID, records)
	segments := ledger.Segments()

	cyan := color.New(color.FgCyan, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)

	_, _ = cyan.Println("\nSegments")
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tSTART\tEND\tHOURS\tSTATUS\tLOCATION\tNOTE")
	for i, s := range segments {
		fmt.Fprintf(w, "%d\t%.2f\t%.2f\t%.2f\t%s\t%s\t%s\n", i, s.StartHour, s.EndHour, s.Duration(), s.Status.Label(), s.Location, s.Note)
	}
	_ = w.Flush()

	totals := eld.Aggregate(ledger).Rounded()
	_, _ = cyan.Println("\nTotals")
	for _, status := range eld.BillableStatuses {
		fmt.Printf("  %-14s %s\n", status.Label(), totals.Format(status))
	}
	fmt.Printf("  %-14s %.2f hrs\n", "All", totals.Total())

	if overlaps := ledger.Overlaps(); len(overlaps) > 0 {
		fmt.Println()
		for _, o := range overlaps {
			_, _ = yellow.Printf("⚠️  Segments %d and %d overlap\n", o.First, o.Second)
		}
	}

	if len(dropped) > 0 {
		fmt.Println()
		for _, r := range dropped {
			_, _ = yellow.Printf("⚠️  Dropped record %s with status %q (%.2f-%.2f)\n", r.ID, r.Status, r.StartHour, r.EndHour)
		}
	}
}
