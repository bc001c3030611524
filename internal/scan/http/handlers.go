package scanhttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/closure-watch/internal/ledger"
	"github.com/odyssey-erp/closure-watch/internal/platform/httpx"
	"github.com/odyssey-erp/closure-watch/internal/scan"
	"github.com/odyssey-erp/closure-watch/internal/view"
)

const latestTimeout = 5 * time.Second

// ScanService is the orchestration contract used by the handler.
type ScanService interface {
	Run(ctx context.Context, trigger scan.Trigger) (scan.Result, error)
	Latest(ctx context.Context) (scan.Result, bool, error)
	Policy() scan.Policy
}

// Prober checks ledger connectivity.
type Prober interface {
	Probe(ctx context.Context) (ledger.ProbeResult, error)
}

// Enqueuer hands scans to the background worker.
type Enqueuer interface {
	EnqueueDormancyScan(ctx context.Context, trigger scan.Trigger) (*asynq.TaskInfo, error)
}

// Config collects handler dependencies. Prober, Enqueuer and Templates are optional.
type Config struct {
	Service       ScanService
	Prober        Prober
	Enqueuer      Enqueuer
	Templates     *view.Engine
	Logger        *slog.Logger
	ScanRateLimit int
}

// Handler serves the scan API and dashboard.
type Handler struct {
	service   ScanService
	prober    Prober
	enqueuer  Enqueuer
	templates *view.Engine
	logger    *slog.Logger
	scanLimit int
}

// NewHandler constructs the scan HTTP handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := cfg.ScanRateLimit
	if limit <= 0 {
		limit = 5
	}
	return &Handler{
		service:   cfg.Service,
		prober:    cfg.Prober,
		enqueuer:  cfg.Enqueuer,
		templates: cfg.Templates,
		logger:    logger,
		scanLimit: limit,
	}
}

type scanResponse struct {
	Success   bool               `json:"success"`
	ScanID    string             `json:"scanId"`
	Results   []scan.AlertRecord `json:"results"`
	Timestamp time.Time          `json:"timestamp"`
	Count     int                `json:"count"`
	Stats     scan.Stats         `json:"stats"`
	Message   string             `json:"message"`
}

type queuedResponse struct {
	Success bool   `json:"success"`
	TaskID  string `json:"taskId"`
	Queue   string `json:"queue"`
	Message string `json:"message"`
}

type failureResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type emptyLatestResponse struct {
	Results   []scan.AlertRecord `json:"results"`
	Timestamp *time.Time         `json:"timestamp"`
	Count     int                `json:"count"`
	Message   string             `json:"message"`
}

type sampleResponse struct {
	HasData        bool    `json:"hasData"`
	FirstAccountID *string `json:"firstAccountId"`
}

type connectionResponse struct {
	Success        bool           `json:"success"`
	Message        string         `json:"message"`
	AccountCount   int            `json:"accountCount"`
	SampleResponse sampleResponse `json:"sampleResponse"`
}

func (h *Handler) handleScan(w http.ResponseWriter, r *http.Request) {
	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		h.enqueueScan(w, r)
		return
	}

	result, err := h.service.Run(r.Context(), scan.TriggerManual)
	if err != nil {
		status, message := describeFailure(err)
		h.logger.Error("manual scan failed", slog.Int("status", status), slog.Any("error", err))
		httpx.JSON(w, status, failureResponse{Success: false, Message: message})
		return
	}
	httpx.JSON(w, http.StatusOK, scanResponse{
		Success:   true,
		ScanID:    result.ID.String(),
		Results:   result.Results,
		Timestamp: result.Timestamp,
		Count:     result.Count,
		Stats:     result.Stats,
		Message:   fmt.Sprintf("Found %d account(s) requiring attention", result.Count),
	})
}

func (h *Handler) enqueueScan(w http.ResponseWriter, r *http.Request) {
	if h.enqueuer == nil {
		httpx.JSON(w, http.StatusServiceUnavailable, failureResponse{Success: false, Message: "Background queue is not configured"})
		return
	}
	info, err := h.enqueuer.EnqueueDormancyScan(r.Context(), scan.TriggerManual)
	if err != nil {
		h.logger.Error("enqueue scan", slog.Any("error", err))
		httpx.JSON(w, http.StatusServiceUnavailable, failureResponse{Success: false, Message: "Failed to queue scan"})
		return
	}
	resp := queuedResponse{Success: true, Message: "Scan queued"}
	if info != nil {
		resp.TaskID = info.ID
		resp.Queue = info.Queue
	}
	httpx.JSON(w, http.StatusAccepted, resp)
}

func (h *Handler) handleLatest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), latestTimeout)
	defer cancel()

	result, ok, err := h.service.Latest(ctx)
	if err != nil {
		h.logger.Error("load latest scan", slog.Any("error", err))
		httpx.JSON(w, http.StatusInternalServerError, failureResponse{Success: false, Message: "Failed to load latest results"})
		return
	}
	if !ok {
		httpx.JSON(w, http.StatusOK, emptyLatestResponse{
			Results: []scan.AlertRecord{},
			Message: "No scan results available yet",
		})
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	if h.prober == nil {
		_, message := describeFailure(&ledger.ConfigurationError{Setting: "LEDGER_API_TOKEN"})
		httpx.JSON(w, http.StatusServiceUnavailable, failureResponse{Success: false, Message: "Ledger API connection failed", Error: message})
		return
	}
	probe, err := h.prober.Probe(r.Context())
	if err != nil {
		_, message := describeFailure(err)
		h.logger.Warn("ledger connection test failed", slog.Int("upstream_status", ledger.StatusCode(err)), slog.Any("error", err))
		httpx.JSON(w, http.StatusInternalServerError, failureResponse{Success: false, Message: "Ledger API connection failed", Error: message})
		return
	}
	sample := sampleResponse{HasData: probe.AccountCount > 0}
	if probe.FirstAccountID != "" {
		id := probe.FirstAccountID
		sample.FirstAccountID = &id
	}
	httpx.JSON(w, http.StatusOK, connectionResponse{
		Success:        true,
		Message:        "Ledger API connection successful",
		AccountCount:   probe.AccountCount,
		SampleResponse: sample,
	})
}

type dashboardView struct {
	HasResult     bool
	Result        scan.Result
	ThresholdDays int
	BalanceAtRisk string
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	h.renderDashboard(w, r, http.StatusOK, "")
}

func (h *Handler) handleDashboardScan(w http.ResponseWriter, r *http.Request) {
	if _, err := h.service.Run(r.Context(), scan.TriggerManual); err != nil {
		status, message := describeFailure(err)
		h.logger.Error("dashboard scan failed", slog.Int("status", status), slog.Any("error", err))
		h.renderDashboard(w, r, status, "Scan failed: "+message)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) renderDashboard(w http.ResponseWriter, r *http.Request, status int, notice string) {
	ctx, cancel := context.WithTimeout(r.Context(), latestTimeout)
	defer cancel()

	vm := dashboardView{ThresholdDays: h.service.Policy().ThresholdDays}
	result, ok, err := h.service.Latest(ctx)
	if err != nil {
		h.logger.Error("load latest scan", slog.Any("error", err))
		if notice == "" {
			notice = "Failed to load latest results"
		}
	} else if ok {
		vm.HasResult = true
		vm.Result = result
		vm.BalanceAtRisk = scan.BalanceAtRisk(result.Results).StringFixed(2)
	}

	if h.templates == nil {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, "pages/dashboard.html", view.TemplateData{
		Title:       "Dashboard",
		CurrentPath: r.URL.Path,
		Notice:      notice,
		Data:        vm,
	}); err != nil {
		h.logger.Error("render dashboard", slog.Any("error", err))
	}
}

// describeFailure maps scan errors to an HTTP status and an operator-facing message.
// Messages never include credentials.
func describeFailure(err error) (int, string) {
	if ledger.IsConfiguration(err) {
		return http.StatusServiceUnavailable, "Ledger API token is not configured. Set LEDGER_API_TOKEN."
	}
	switch ledger.StatusCode(err) {
	case http.StatusUnauthorized:
		return http.StatusBadGateway, "Ledger API rejected the token (401). Check LEDGER_API_TOKEN."
	case http.StatusForbidden:
		return http.StatusBadGateway, "Ledger API token lacks permission for this request (403)."
	case http.StatusNotFound:
		return http.StatusBadGateway, "Ledger API endpoint not found (404). Check LEDGER_API_URL."
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, "Ledger API did not respond in time."
	}
	return http.StatusInternalServerError, err.Error()
}
