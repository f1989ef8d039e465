package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

// buildDiamond wires the loader's shape: fetch → aggregate →
// {channels, details} → facts, calling record on each node run.
func buildDiamond(t *testing.T, record func(name string), fail map[string]error) *Graph {
	t.Helper()
	g := New()
	nodes := []string{"fetch_titles", "fetch_and_aggregate", "load_channels", "load_video_details", "load_video_facts"}
	for _, name := range nodes {
		name := name
		if err := g.AddNode(name, func(ctx context.Context) error {
			record(name)
			return fail[name]
		}); err != nil {
			t.Fatalf("AddNode(%s): %v", name, err)
		}
	}

	edges := [][2]string{
		{"fetch_titles", "fetch_and_aggregate"},
		{"fetch_and_aggregate", "load_channels"},
		{"fetch_and_aggregate", "load_video_details"},
		{"load_channels", "load_video_facts"},
		{"load_video_details", "load_video_facts"},
	}
	for _, e := range edges {
		if err := g.AddEdge(e[0], e[1]); err != nil {
			t.Fatalf("AddEdge(%s, %s): %v", e[0], e[1], err)
		}
	}
	return g
}

func TestRun_AllSucceed(t *testing.T) {
	var mu sync.Mutex
	var order []string
	record := func(name string) {
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
	}

	g := buildDiamond(t, record, nil)
	res, err := g.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if !res.Succeeded() {
		t.Fatalf("run did not succeed: %+v", res.Nodes)
	}

	pos := make(map[string]int, len(order))
	for i, name := range order {
		pos[name] = i
	}
	if len(order) != 5 {
		t.Fatalf("ran %d nodes, want 5: %v", len(order), order)
	}
	if pos["fetch_titles"] > pos["fetch_and_aggregate"] {
		t.Error("fetch_titles ran after fetch_and_aggregate")
	}
	if pos["fetch_and_aggregate"] > pos["load_channels"] || pos["fetch_and_aggregate"] > pos["load_video_details"] {
		t.Error("a load node ran before fetch_and_aggregate")
	}
	if pos["load_video_facts"] < pos["load_channels"] || pos["load_video_facts"] < pos["load_video_details"] {
		t.Error("join node ran before both upstream loads finished")
	}
}

func TestRun_FailureCascadesSkip(t *testing.T) {
	ran := make(map[string]bool)
	var mu sync.Mutex
	record := func(name string) {
		mu.Lock()
		ran[name] = true
		mu.Unlock()
	}

	boom := errors.New("quota exhausted")
	g := buildDiamond(t, record, map[string]error{"fetch_and_aggregate": boom})

	res, err := g.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.Succeeded() {
		t.Fatal("run reported success despite node failure")
	}
	if !errors.Is(res.Err(), boom) {
		t.Errorf("res.Err() = %v, want wrapped %v", res.Err(), boom)
	}

	if res.Nodes["fetch_titles"].Status != StatusSucceeded {
		t.Errorf("fetch_titles = %s, want succeeded", res.Nodes["fetch_titles"].Status)
	}
	if res.Nodes["fetch_and_aggregate"].Status != StatusFailed {
		t.Errorf("fetch_and_aggregate = %s, want failed", res.Nodes["fetch_and_aggregate"].Status)
	}
	for _, name := range []string{"load_channels", "load_video_details", "load_video_facts"} {
		if res.Nodes[name].Status != StatusSkipped {
			t.Errorf("%s = %s, want skipped", name, res.Nodes[name].Status)
		}
		if ran[name] {
			t.Errorf("%s ran despite upstream failure", name)
		}
	}
}

func TestRun_SiblingLoadFailureBlocksOnlyJoin(t *testing.T) {
	boom := errors.New("write failed")
	g := buildDiamond(t, func(string) {}, map[string]error{"load_channels": boom})

	res, err := g.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if res.Nodes["load_video_details"].Status != StatusSucceeded {
		t.Errorf("sibling load = %s, want succeeded", res.Nodes["load_video_details"].Status)
	}
	if res.Nodes["load_channels"].Status != StatusFailed {
		t.Errorf("load_channels = %s, want failed", res.Nodes["load_channels"].Status)
	}
	if res.Nodes["load_video_facts"].Status != StatusSkipped {
		t.Errorf("join node = %s, want skipped", res.Nodes["load_video_facts"].Status)
	}
}

func TestRun_IndependentNodesRunConcurrently(t *testing.T) {
	g := New()

	aInB := make(chan struct{})
	bInA := make(chan struct{})
	g.AddNode("a", func(ctx context.Context) error {
		close(aInB)
		select {
		case <-bInA:
			return nil
		case <-time.After(2 * time.Second):
			return errors.New("b never started while a was running")
		}
	})
	g.AddNode("b", func(ctx context.Context) error {
		close(bInA)
		select {
		case <-aInB:
			return nil
		case <-time.After(2 * time.Second):
			return errors.New("a never started while b was running")
		}
	})

	res, err := g.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if !res.Succeeded() {
		t.Errorf("independent nodes did not overlap: %+v", res.Nodes)
	}
}

func TestValidate_RejectsCycle(t *testing.T) {
	g := New()
	g.AddNode("a", func(ctx context.Context) error { return nil })
	g.AddNode("b", func(ctx context.Context) error { return nil })
	g.AddEdge("a", "b")
	g.AddEdge("b", "a")

	if err := g.Validate(); err == nil {
		t.Error("Validate accepted a cyclic graph")
	}
	if _, err := g.Run(context.Background()); err == nil {
		t.Error("Run accepted a cyclic graph")
	}
}

func TestAddEdge_UnknownNode(t *testing.T) {
	g := New()
	g.AddNode("a", func(ctx context.Context) error { return nil })

	if err := g.AddEdge("a", "missing"); err == nil {
		t.Error("AddEdge accepted unknown target")
	}
	if err := g.AddEdge("missing", "a"); err == nil {
		t.Error("AddEdge accepted unknown source")
	}
}

func TestAddNode_DuplicateName(t *testing.T) {
	g := New()
	g.AddNode("a", func(ctx context.Context) error { return nil })
	if err := g.AddNode("a", func(ctx context.Context) error { return nil }); err == nil {
		t.Error("AddNode accepted duplicate name")
	}
}

func TestNodeResult_MarshalsDurationAsMilliseconds(t *testing.T) {
	res := &NodeResult{Status: StatusSucceeded, Duration: 50 * time.Millisecond}

	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"status":"succeeded","duration_ms":50}`
	if string(data) != want {
		t.Errorf("marshalled %s, want %s", data, want)
	}

	failed := &NodeResult{Status: StatusFailed, Error: "boom", Duration: 1200 * time.Millisecond}
	data, err = json.Marshal(failed)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want = `{"status":"failed","error":"boom","duration_ms":1200}`
	if string(data) != want {
		t.Errorf("marshalled %s, want %s", data, want)
	}
}
