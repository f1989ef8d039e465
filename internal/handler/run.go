package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/miprootsaysak/yt-loader/internal/service"
	"github.com/miprootsaysak/yt-loader/internal/staging"
	"github.com/miprootsaysak/yt-loader/internal/youtube"
)

type RunHandler struct {
	svc *service.RunService
}

func NewRunHandler(svc *service.RunService) *RunHandler {
	return &RunHandler{svc: svc}
}

// Trigger handles POST /api/runs — executes one full pipeline run
// synchronously and returns its report. A failed run still returns 200;
// the report carries per-node status.
func (h *RunHandler) Trigger(c fiber.Ctx) error {
	report, err := h.svc.Run(c.Context())
	if errors.Is(err, service.ErrRunInProgress) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    "RUN_IN_PROGRESS",
				"message": "a pipeline run is already executing",
			},
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    "INTERNAL_ERROR",
				"message": "Failed to execute pipeline run",
			},
		})
	}

	observeRun(report)
	return c.JSON(report)
}

// Latest handles GET /api/runs/latest
func (h *RunHandler) Latest(c fiber.Ctx) error {
	report := h.svc.Latest()
	if report == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    "NOT_FOUND",
				"message": "no run has executed yet",
			},
		})
	}
	return c.JSON(report)
}

// observeRun records run-level Prometheus metrics from a finished report.
func observeRun(r *service.RunReport) {
	if Metrics.RunDuration == nil {
		return
	}

	Metrics.RunDuration.Observe(r.FinishedAt.Sub(r.StartedAt).Seconds())
	for node, res := range r.Nodes {
		Metrics.NodeDuration.WithLabelValues(node, string(res.Status)).Observe(res.Duration.Seconds())
	}

	if r.Ingest != nil {
		Metrics.RecordsStaged.WithLabelValues(staging.StageChannels).Add(float64(r.Ingest.StagedChannels))
		Metrics.RecordsStaged.WithLabelValues(staging.StageVideoDetails).Add(float64(r.Ingest.StagedDetails))
		Metrics.RecordsStaged.WithLabelValues(staging.StageVideoFacts).Add(float64(r.Ingest.StagedFacts))
		Metrics.ItemsSkipped.WithLabelValues("not_found").Add(float64(r.Ingest.SkippedNotFound))
		Metrics.ItemsSkipped.WithLabelValues("malformed").Add(float64(r.Ingest.SkippedMalformed))
	}

	for table, stats := range r.Loads {
		Metrics.RowsLoaded.WithLabelValues(table, "inserted").Add(float64(stats.Inserted))
		Metrics.RowsLoaded.WithLabelValues(table, "superseded").Add(float64(stats.Superseded))
		Metrics.RowsLoaded.WithLabelValues(table, "unchanged").Add(float64(stats.Unchanged))
		Metrics.RowsLoaded.WithLabelValues(table, "skipped").Add(float64(stats.Skipped))
	}

	if errors.Is(r.Err(), youtube.ErrQuotaExceeded) {
		Metrics.QuotaFailures.Inc()
	}
}
