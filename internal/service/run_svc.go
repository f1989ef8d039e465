package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/miprootsaysak/yt-loader/internal/model"
	"github.com/miprootsaysak/yt-loader/internal/pipeline"
	"github.com/miprootsaysak/yt-loader/internal/repository"
	"github.com/miprootsaysak/yt-loader/internal/staging"
)

// Pipeline node names.
const (
	NodeFetchTitles       = "fetch_titles"
	NodeFetchAndAggregate = "fetch_and_aggregate"
	NodeLoadChannels      = "load_channels"
	NodeLoadVideoDetails  = "load_video_details"
	NodeLoadVideoFacts    = "load_video_facts"
)

// ErrRunInProgress is returned when a run is triggered while another
// run is still executing.
var ErrRunInProgress = errors.New("pipeline run already in progress")

// TitleSource provides the search seeds; satisfied by TitleRepo.
type TitleSource interface {
	FetchAll(ctx context.Context) ([]model.Title, error)
}

// RunReport is the outcome of one pipeline run, kept for the trigger
// API and the one-shot exit code.
type RunReport struct {
	StartedAt  time.Time                       `json:"started_at"`
	FinishedAt time.Time                       `json:"finished_at"`
	Succeeded  bool                            `json:"succeeded"`
	Nodes      map[string]*pipeline.NodeResult `json:"nodes"`
	Order      []string                        `json:"order"`
	Ingest     *IngestStats                    `json:"ingest,omitempty"`
	Loads      map[string]repository.LoadStats `json:"loads,omitempty"`
}

// Err returns the first node failure in declaration order, or nil.
func (r *RunReport) Err() error {
	res := pipeline.Result{Order: r.Order, Nodes: r.Nodes}
	return res.Err()
}

// RunService wires the pipeline graph. Node edges mirror the warehouse
// dependencies: facts reference both dimensions, so load_video_facts
// joins on both loads; the two dimension loads are independent and run
// concurrently.
type RunService struct {
	titles  TitleSource
	ingest  *IngestService
	loads   *LoadService
	store   staging.Store
	running sync.Mutex
	mu      sync.Mutex
	last    *RunReport
}

func NewRunService(titles TitleSource, ingest *IngestService, loads *LoadService, store staging.Store) *RunService {
	return &RunService{titles: titles, ingest: ingest, loads: loads, store: store}
}

// Run executes one full pipeline run. Only one run executes at a time;
// a concurrent trigger returns ErrRunInProgress.
func (s *RunService) Run(ctx context.Context) (*RunReport, error) {
	if !s.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.running.Unlock()

	report := &RunReport{
		StartedAt: time.Now().UTC(),
		Loads:     make(map[string]repository.LoadStats, 3),
	}
	var reportMu sync.Mutex

	// Payload handed from fetch_titles to fetch_and_aggregate. The
	// graph serializes the two nodes, so no lock is needed.
	var titles []model.Title

	g := pipeline.New()
	var buildErrs []error
	must := func(err error) {
		if err != nil {
			buildErrs = append(buildErrs, err)
		}
	}

	must(g.AddNode(NodeFetchTitles, func(ctx context.Context) error {
		var err error
		titles, err = s.titles.FetchAll(ctx)
		if err == nil {
			log.Printf("run: fetched %d title seeds", len(titles))
		}
		return err
	}))
	must(g.AddNode(NodeFetchAndAggregate, func(ctx context.Context) error {
		stats, err := s.ingest.Run(ctx, titles)
		if err != nil {
			return err
		}
		reportMu.Lock()
		report.Ingest = stats
		reportMu.Unlock()
		return nil
	}))
	must(g.AddNode(NodeLoadChannels, func(ctx context.Context) error {
		stats, err := s.loads.LoadChannels(ctx)
		reportMu.Lock()
		report.Loads["channel"] = stats
		reportMu.Unlock()
		return err
	}))
	must(g.AddNode(NodeLoadVideoDetails, func(ctx context.Context) error {
		stats, err := s.loads.LoadVideoDetails(ctx)
		reportMu.Lock()
		report.Loads["video_details"] = stats
		reportMu.Unlock()
		return err
	}))
	must(g.AddNode(NodeLoadVideoFacts, func(ctx context.Context) error {
		stats, err := s.loads.LoadVideoFacts(ctx)
		reportMu.Lock()
		report.Loads["video"] = stats
		reportMu.Unlock()
		return err
	}))

	must(g.AddEdge(NodeFetchTitles, NodeFetchAndAggregate))
	must(g.AddEdge(NodeFetchAndAggregate, NodeLoadChannels))
	must(g.AddEdge(NodeFetchAndAggregate, NodeLoadVideoDetails))
	must(g.AddEdge(NodeLoadChannels, NodeLoadVideoFacts))
	must(g.AddEdge(NodeLoadVideoDetails, NodeLoadVideoFacts))

	if err := errors.Join(buildErrs...); err != nil {
		return nil, fmt.Errorf("build pipeline graph: %w", err)
	}

	result, err := g.Run(ctx)
	if err != nil {
		return nil, err
	}

	report.FinishedAt = time.Now().UTC()
	report.Succeeded = result.Succeeded()
	report.Nodes = result.Nodes
	report.Order = result.Order

	if report.Succeeded {
		s.clearStaging(ctx)
		log.Printf("run: succeeded in %s", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	} else {
		log.Printf("run: failed: %v", result.Err())
	}

	s.mu.Lock()
	s.last = report
	s.mu.Unlock()

	return report, nil
}

// Latest returns the most recent run report, or nil before any run.
func (s *RunService) Latest() *RunReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// clearStaging is best-effort; a leftover batch is overwritten by the
// next run anyway.
func (s *RunService) clearStaging(ctx context.Context) {
	for _, stage := range []string{staging.StageChannels, staging.StageVideoDetails, staging.StageVideoFacts} {
		if err := s.store.Clear(ctx, stage); err != nil {
			log.Printf("run: clear stage %s: %v", stage, err)
		}
	}
}
