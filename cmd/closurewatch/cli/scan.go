package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/odyssey-erp/closure-watch/internal/ledger"
	"github.com/odyssey-erp/closure-watch/internal/scan"
)

// ExitAlerts is returned by the scan and latest commands when accounts are flagged.
const ExitAlerts = 10

// ScanService is the orchestration contract used by the scan commands.
type ScanService interface {
	Run(ctx context.Context, trigger scan.Trigger) (scan.Result, error)
	Latest(ctx context.Context) (scan.Result, bool, error)
}

// Prober checks ledger connectivity.
type Prober interface {
	Probe(ctx context.Context) (ledger.ProbeResult, error)
}

// ScanCLI exposes scan operations for operators and cron hosts.
type ScanCLI struct {
	service ScanService
	prober  Prober
}

// NewScanCLI constructs the scan helpers. prober may be nil when no ledger token is configured.
func NewScanCLI(service ScanService, prober Prober) *ScanCLI {
	return &ScanCLI{service: service, prober: prober}
}

// OutputOptions controls where and how command results are printed.
type OutputOptions struct {
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

func (o OutputOptions) withDefaults() OutputOptions {
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
	return o
}

// ScanCommand runs a scan in process and prints the alerts.
func (c *ScanCLI) ScanCommand(ctx context.Context, opts OutputOptions) int {
	opts = opts.withDefaults()
	result, err := c.service.Run(ctx, scan.TriggerCLI)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "scan: %v\n", err)
		return 1
	}
	return printResult(opts, result)
}

// LatestCommand prints the stored result of the previous scan.
func (c *ScanCLI) LatestCommand(ctx context.Context, opts OutputOptions) int {
	opts = opts.withDefaults()
	result, ok, err := c.service.Latest(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "latest: %v\n", err)
		return 1
	}
	if !ok {
		_, _ = fmt.Fprintln(opts.Stderr, "latest: no scan results available yet")
		return 0
	}
	return printResult(opts, result)
}

// ProbeCommand checks that the ledger accepts the configured token.
func (c *ScanCLI) ProbeCommand(ctx context.Context, opts OutputOptions) int {
	opts = opts.withDefaults()
	if c.prober == nil {
		_, _ = fmt.Fprintf(opts.Stderr, "probe: %v\n", &ledger.ConfigurationError{Setting: "LEDGER_API_TOKEN"})
		return 1
	}
	probe, err := c.prober.Probe(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "probe: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(probe); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "probe: encode json: %v\n", err)
			return 1
		}
		return 0
	}
	_, _ = fmt.Fprintf(opts.Stdout, "ledger reachable: %d account(s) returned", probe.AccountCount)
	if probe.FirstAccountID != "" {
		_, _ = fmt.Fprintf(opts.Stdout, ", first %s", probe.FirstAccountID)
	}
	_, _ = fmt.Fprintln(opts.Stdout)
	return 0
}

func printResult(opts OutputOptions, result scan.Result) int {
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(result); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "encode json: %v\n", err)
			return 1
		}
	} else {
		renderHuman(opts.Stdout, result)
	}
	if result.Count > 0 {
		return ExitAlerts
	}
	return 0
}

func renderHuman(w io.Writer, result scan.Result) {
	_, _ = fmt.Fprintf(w, "scan %s at %s (%s)\n", result.ID, result.Timestamp.Format("2006-01-02 15:04:05Z07:00"), result.Trigger)
	_, _ = fmt.Fprintf(w, "candidates=%d alerted=%d below_threshold=%d skipped=%d failed=%d pages=%d\n",
		result.Stats.Candidates, result.Stats.Alerted, result.Stats.BelowThreshold, result.Stats.Skipped, result.Stats.Failed, result.Stats.PagesFetched)
	if result.Count == 0 {
		_, _ = fmt.Fprintf(w, "no accounts negative and inactive for %d+ days\n", result.ThresholdDays)
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ACCOUNT\tCUSTOMER\tNAME\tBALANCE\tDAYS\tSINCE")
	for _, rec := range result.Results {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			rec.AccountID, rec.CustomerID, rec.CustomerName, rec.Balance, rec.DaysInactive, rec.InactiveSince.Format("2006-01-02"))
	}
	_ = tw.Flush()
	_, _ = fmt.Fprintf(w, "total balance at risk: %s\n", scan.BalanceAtRisk(result.Results).StringFixed(2))
}
