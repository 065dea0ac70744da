// Package solver translates a problem instance into a generic routing
// constraint model and delegates search to an Engine. The Engine is an
// injected capability, so the builder can be exercised against a stub in
// tests; localsearch.go ships the in-process implementation used by the
// API.
package solver

import (
	"context"
	"errors"
	"time"
)

// ErrInfeasible is returned by an Engine when no feasible assignment
// exists within the model's constraints.
var ErrInfeasible = errors.New("no feasible assignment")

// Status reports the outcome of a Builder solve. Accessors on an unsolved
// or infeasible builder return explicit zero values; callers must check
// Status rather than infer from zeroed metrics.
type Status int

const (
	StatusUnsolved Status = iota
	StatusSolved
	StatusInfeasible
)

func (s Status) String() string {
	switch s {
	case StatusSolved:
		return "solved"
	case StatusInfeasible:
		return "infeasible"
	default:
		return "unsolved"
	}
}

// TransitFunc evaluates the scaled transit value of an arc.
type TransitFunc func(from, to int) int64

// DemandFunc evaluates the value accumulated by leaving a node.
type DemandFunc func(node int) int64

// FirstSolution selects the constructive heuristic used to seed search.
type FirstSolution int

// Metaheuristic selects the improvement strategy run until the time limit.
type Metaheuristic int

const (
	ParallelCheapestInsertion FirstSolution = iota
)

const (
	GuidedLocalSearch Metaheuristic = iota
)

// SearchParams bound a single search run.
type SearchParams struct {
	FirstSolution FirstSolution
	Metaheuristic Metaheuristic
	TimeLimit     time.Duration
	Seed          int64
}

// Engine is the external constraint/local-search capability the builder
// drives: index-space construction, evaluator registration, cumulative
// dimensions, per-node cumul ranges, finalizer hints, and bounded search.
type Engine interface {
	// Init constructs the index space from node count, vehicle count and
	// the depot node.
	Init(numNodes, numVehicles, depot int)
	// SetArcCost registers the transit evaluator minimized as the
	// objective's variable part.
	SetArcCost(transit TransitFunc)
	// SetFixedVehicleCost charges a constant for every vehicle whose route
	// visits at least one node.
	SetFixedVehicleCost(cost int64)
	// AddDimension registers a cumulative dimension. Exactly one of unary
	// or binary must be non-nil. slackMax allows waiting before a visit;
	// capacities bound the cumulative value per vehicle; startAtZero
	// forces the cumul to zero at every vehicle start.
	AddDimension(name string, unary DemandFunc, binary TransitFunc, slackMax int64, capacities []int64, startAtZero bool) error
	// SetCumulRange constrains a node's cumulative value on a dimension.
	SetCumulRange(dim string, node int, lo, hi int64) error
	// SetStartCumulRange constrains a vehicle's start cumulative value.
	SetStartCumulRange(dim string, vehicle int, lo, hi int64) error
	// MinimizeStartEndCumul asks the engine to additionally minimize the
	// vehicle's start and end cumul among equal-cost visit plans.
	MinimizeStartEndCumul(dim string, vehicle int)
	// Solve runs bounded search. It returns ErrInfeasible when no feasible
	// assignment exists.
	Solve(ctx context.Context, params SearchParams) (Assignment, error)
}

// Assignment is post-solve read access to a plan: each vehicle's route is
// walked from its start index via Next until IsEnd, and cumulative values
// are read per index.
type Assignment interface {
	ObjectiveValue() int64
	Start(vehicle int) int
	Next(index int) int
	IsEnd(index int) bool
	Node(index int) int
	Cumul(dim string, index int) int64
}
