// Package pipeline is an explicit task graph: named nodes, dependency
// edges, topological execution. The surrounding scheduler (cron, an
// operator hitting the trigger endpoint) decides when a run happens;
// the graph decides what runs and in which order.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Status is a node's terminal (or in-flight) state within one run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	// StatusSkipped marks a node whose upstream failed; it never ran.
	StatusSkipped Status = "skipped-upstream-failure"
)

// RunFunc executes one node.
type RunFunc func(ctx context.Context) error

type node struct {
	name string
	run  RunFunc
	deps []string
}

// Graph is a DAG of named task nodes. Build it with AddNode/AddEdge,
// then execute with Run. A Graph is not safe for concurrent mutation.
type Graph struct {
	nodes map[string]*node
	order []string
}

func New() *Graph {
	return &Graph{nodes: make(map[string]*node)}
}

// AddNode registers a task under a unique name.
func (g *Graph) AddNode(name string, fn RunFunc) error {
	if _, exists := g.nodes[name]; exists {
		return fmt.Errorf("pipeline: duplicate node %q", name)
	}
	g.nodes[name] = &node{name: name, run: fn}
	g.order = append(g.order, name)
	return nil
}

// AddEdge declares that to depends on from.
func (g *Graph) AddEdge(from, to string) error {
	if _, ok := g.nodes[from]; !ok {
		return fmt.Errorf("pipeline: unknown node %q", from)
	}
	n, ok := g.nodes[to]
	if !ok {
		return fmt.Errorf("pipeline: unknown node %q", to)
	}
	n.deps = append(n.deps, from)
	return nil
}

// Validate rejects cyclic graphs.
func (g *Graph) Validate() error {
	indegree := make(map[string]int, len(g.nodes))
	for _, n := range g.nodes {
		indegree[n.name] = len(n.deps)
	}

	var ready []string
	for _, name := range g.order {
		if indegree[name] == 0 {
			ready = append(ready, name)
		}
	}

	visited := 0
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		visited++
		for _, other := range g.nodes {
			for _, dep := range other.deps {
				if dep == name {
					indegree[other.name]--
					if indegree[other.name] == 0 {
						ready = append(ready, other.name)
					}
				}
			}
		}
	}

	if visited != len(g.nodes) {
		return fmt.Errorf("pipeline: graph contains a cycle")
	}
	return nil
}

// NodeResult is one node's outcome within a run.
type NodeResult struct {
	Status   Status        `json:"status"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"-"`
}

// MarshalJSON reports the duration in whole milliseconds; a raw
// time.Duration would serialize as nanoseconds.
func (n *NodeResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Status     Status `json:"status"`
		Error      string `json:"error,omitempty"`
		DurationMS int64  `json:"duration_ms"`
	}{
		Status:     n.Status,
		Error:      n.Error,
		DurationMS: n.Duration.Milliseconds(),
	})
}

// Result is a full run report. The run succeeded iff every node
// succeeded.
type Result struct {
	Order []string               `json:"order"`
	Nodes map[string]*NodeResult `json:"nodes"`
}

// Succeeded reports whether every node reached StatusSucceeded.
func (r *Result) Succeeded() bool {
	for _, n := range r.Nodes {
		if n.Status != StatusSucceeded {
			return false
		}
	}
	return true
}

// Err returns the first node failure in declaration order, or nil.
func (r *Result) Err() error {
	for _, name := range r.Order {
		if n, ok := r.Nodes[name]; ok && n.Err != nil {
			return fmt.Errorf("node %s: %w", name, n.Err)
		}
	}
	return nil
}

// NodeOrder returns node names in declaration order.
func (g *Graph) NodeOrder() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Run executes the graph. Nodes whose dependencies have all succeeded
// run concurrently; a node failure marks every transitive dependent
// skipped without stopping unrelated nodes.
func (g *Graph) Run(ctx context.Context) (*Result, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	result := &Result{
		Order: g.NodeOrder(),
		Nodes: make(map[string]*NodeResult, len(g.nodes)),
	}
	waiting := make(map[string]int, len(g.nodes))
	dependents := make(map[string][]string, len(g.nodes))
	for _, name := range g.order {
		result.Nodes[name] = &NodeResult{Status: StatusPending}
		n := g.nodes[name]
		waiting[name] = len(n.deps)
		for _, dep := range n.deps {
			dependents[dep] = append(dependents[dep], name)
		}
	}

	type completion struct {
		name string
		err  error
		dur  time.Duration
	}
	doneCh := make(chan completion)

	running := 0
	start := func(name string) {
		result.Nodes[name].Status = StatusRunning
		running++
		go func(n *node) {
			started := time.Now()
			err := n.run(ctx)
			doneCh <- completion{name: n.name, err: err, dur: time.Since(started)}
		}(g.nodes[name])
	}

	// skip marks name and all its transitive dependents skipped.
	var skip func(name string)
	skip = func(name string) {
		res := result.Nodes[name]
		if res.Status != StatusPending {
			return
		}
		res.Status = StatusSkipped
		for _, dep := range dependents[name] {
			skip(dep)
		}
	}

	for _, name := range g.order {
		if waiting[name] == 0 {
			start(name)
		}
	}

	for running > 0 {
		c := <-doneCh
		running--
		res := result.Nodes[c.name]
		res.Duration = c.dur

		if c.err != nil {
			res.Status = StatusFailed
			res.Err = c.err
			res.Error = c.err.Error()
			for _, dep := range dependents[c.name] {
				skip(dep)
			}
			continue
		}

		res.Status = StatusSucceeded
		for _, dep := range dependents[c.name] {
			waiting[dep]--
			if waiting[dep] == 0 && result.Nodes[dep].Status == StatusPending {
				start(dep)
			}
		}
	}

	return result, nil
}
