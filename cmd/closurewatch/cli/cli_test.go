package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/closure-watch/internal/ledger"
	"github.com/odyssey-erp/closure-watch/internal/scan"
)

type stubService struct {
	result    scan.Result
	err       error
	hasLatest bool
	triggers  []scan.Trigger
}

func (s *stubService) Run(ctx context.Context, trigger scan.Trigger) (scan.Result, error) {
	s.triggers = append(s.triggers, trigger)
	return s.result, s.err
}

func (s *stubService) Latest(ctx context.Context) (scan.Result, bool, error) {
	return s.result, s.hasLatest, s.err
}

type stubProber struct {
	result ledger.ProbeResult
	err    error
}

func (s stubProber) Probe(ctx context.Context) (ledger.ProbeResult, error) {
	return s.result, s.err
}

func alertResult() scan.Result {
	ts := time.Date(2025, 6, 30, 14, 0, 0, 0, time.UTC)
	return scan.Result{
		ID: uuid.New(),
		Results: []scan.AlertRecord{
			{AccountID: "acc-1", CustomerID: "cust-1", CustomerName: "Ada Lovelace", Balance: "-125.50", DaysInactive: 60, InactiveSince: ts.AddDate(0, 0, -60)},
		},
		Timestamp:     ts,
		Count:         1,
		ThresholdDays: 50,
		Trigger:       scan.TriggerCLI,
		Stats:         scan.Stats{PagesFetched: 1, Candidates: 1, Alerted: 1},
	}
}

func TestScanCommandHumanOutput(t *testing.T) {
	svc := &stubService{result: alertResult()}
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)

	exitCode := NewScanCLI(svc, nil).ScanCommand(context.Background(), OutputOptions{Stdout: stdout, Stderr: stderr})
	require.Equal(t, ExitAlerts, exitCode)
	require.Empty(t, stderr.String())
	require.Equal(t, []scan.Trigger{scan.TriggerCLI}, svc.triggers)
	require.Contains(t, stdout.String(), "acc-1")
	require.Contains(t, stdout.String(), "Ada Lovelace")
	require.Contains(t, stdout.String(), "total balance at risk: 125.50")
}

func TestScanCommandJSONNoAlerts(t *testing.T) {
	result := alertResult()
	result.Results = []scan.AlertRecord{}
	result.Count = 0
	stdout := new(bytes.Buffer)

	exitCode := NewScanCLI(&stubService{result: result}, nil).ScanCommand(context.Background(), OutputOptions{JSONOutput: true, Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Zero(t, exitCode)

	var decoded scan.Result
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &decoded))
	require.Equal(t, result.ID, decoded.ID)
	require.Empty(t, decoded.Results)
}

func TestScanCommandFailure(t *testing.T) {
	stderr := new(bytes.Buffer)
	exitCode := NewScanCLI(&stubService{err: &ledger.ConfigurationError{Setting: "LEDGER_API_TOKEN"}}, nil).
		ScanCommand(context.Background(), OutputOptions{Stdout: new(bytes.Buffer), Stderr: stderr})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "LEDGER_API_TOKEN is required")
}

func TestLatestCommand(t *testing.T) {
	stderr := new(bytes.Buffer)
	exitCode := NewScanCLI(&stubService{}, nil).LatestCommand(context.Background(), OutputOptions{Stdout: new(bytes.Buffer), Stderr: stderr})
	require.Zero(t, exitCode)
	require.Contains(t, stderr.String(), "no scan results available yet")

	stdout := new(bytes.Buffer)
	exitCode = NewScanCLI(&stubService{result: alertResult(), hasLatest: true}, nil).LatestCommand(context.Background(), OutputOptions{Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Equal(t, ExitAlerts, exitCode)
	require.Contains(t, stdout.String(), "alerted=1")

	exitCode = NewScanCLI(&stubService{err: errors.New("redis down")}, nil).LatestCommand(context.Background(), OutputOptions{Stdout: new(bytes.Buffer), Stderr: new(bytes.Buffer)})
	require.Equal(t, 1, exitCode)
}

func TestProbeCommand(t *testing.T) {
	stdout := new(bytes.Buffer)
	exitCode := NewScanCLI(&stubService{}, stubProber{result: ledger.ProbeResult{AccountCount: 5, FirstAccountID: "acc-1"}}).
		ProbeCommand(context.Background(), OutputOptions{JSONOutput: true, Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Zero(t, exitCode)
	require.JSONEq(t, `{"accountCount":5,"firstAccountId":"acc-1"}`, stdout.String())

	stderr := new(bytes.Buffer)
	exitCode = NewScanCLI(&stubService{}, nil).ProbeCommand(context.Background(), OutputOptions{Stdout: new(bytes.Buffer), Stderr: stderr})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "LEDGER_API_TOKEN")

	stderr.Reset()
	exitCode = NewScanCLI(&stubService{}, stubProber{err: &ledger.UpstreamError{Op: "probe", StatusCode: 401}}).
		ProbeCommand(context.Background(), OutputOptions{Stdout: new(bytes.Buffer), Stderr: stderr})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "status 401")
}

func TestJobsCLIRejectsUnknownJob(t *testing.T) {
	_, err := NewJobsCLI("")
	require.Error(t, err)

	jobsCLI, err := NewJobsCLI("127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = jobsCLI.Close() }()

	_, err = jobsCLI.Trigger(context.Background(), "insights_warmup")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported job")

	var nilCLI *JobsCLI
	_, err = nilCLI.Trigger(context.Background(), "dormancy_scan")
	require.Error(t, err)
	_, err = nilCLI.InspectQueue(context.Background())
	require.Error(t, err)
}
