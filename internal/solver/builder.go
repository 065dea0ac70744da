package solver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vrpsolve/internal/vrp"
)

const (
	// FixedVehicleCost dominates any realistic travel-time saving, so the
	// engine never trades an extra vehicle for a shorter route: vehicle
	// count is the first objective tier, total time the second.
	FixedVehicleCost = 100000

	// timeHorizon leaves route duration effectively unconstrained and
	// allows waiting before any visit.
	timeHorizon = int64(10_000_000_000)

	dimCapacity = "Capacity"
	dimTime     = "Time"
)

// Builder owns one optimization call: it registers the constraint model on
// the engine at construction and exposes the result after Solve. It is not
// safe for concurrent use; build one per request.
type Builder struct {
	in     *vrp.Instance
	eng    Engine
	status Status
	asg    Assignment
}

// NewBuilder validates the instance, constructs the routing model on the
// engine and returns the builder. A structural invariant violation fails
// here, before any search begins.
func NewBuilder(in *vrp.Instance, eng Engine) (*Builder, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	b := &Builder{in: in, eng: eng}
	if err := b.buildModel(); err != nil {
		return nil, fmt.Errorf("build routing model: %w", err)
	}
	return b, nil
}

func (b *Builder) buildModel() error {
	in := b.in
	b.eng.Init(in.NumNodes(), in.NumVehicles, in.Depot)
	b.eng.SetArcCost(func(from, to int) int64 { return in.TimeMatrix[from][to] })
	b.eng.SetFixedVehicleCost(FixedVehicleCost)

	// Capacity: no slack, per-vehicle bounds, cumul forced to zero at the
	// depot.
	if err := b.eng.AddDimension(dimCapacity,
		func(node int) int64 { return in.Demands[node] }, nil,
		0, in.VehicleCapacities, true); err != nil {
		return err
	}

	// Time: waiting permitted before departure and at nodes so downstream
	// windows can be met; start cumul is not forced to zero.
	ceilings := make([]int64, in.NumVehicles)
	for v := range ceilings {
		ceilings[v] = timeHorizon
	}
	if err := b.eng.AddDimension(dimTime,
		nil, func(from, to int) int64 { return in.TimeMatrix[from][to] },
		timeHorizon, ceilings, false); err != nil {
		return err
	}

	// Every non-depot visit must land inside the node's window; the
	// depot's window bounds each vehicle's start.
	for node, tw := range in.TimeWindows {
		if node == in.Depot {
			continue
		}
		if err := b.eng.SetCumulRange(dimTime, node, tw[0], tw[1]); err != nil {
			return err
		}
	}
	depotTW := in.TimeWindows[in.Depot]
	for v := 0; v < in.NumVehicles; v++ {
		if err := b.eng.SetStartCumulRange(dimTime, v, depotTW[0], depotTW[1]); err != nil {
			return err
		}
		b.eng.MinimizeStartEndCumul(dimTime, v)
	}
	return nil
}

// Solve runs the bounded search. An infeasible model is not an error: the
// builder records StatusInfeasible and all accessors return zero results.
func (b *Builder) Solve(ctx context.Context, timeLimit time.Duration, seed int64) error {
	asg, err := b.eng.Solve(ctx, SearchParams{
		FirstSolution: ParallelCheapestInsertion,
		Metaheuristic: GuidedLocalSearch,
		TimeLimit:     timeLimit,
		Seed:          seed,
	})
	if errors.Is(err, ErrInfeasible) {
		b.status = StatusInfeasible
		return nil
	}
	if err != nil {
		return err
	}
	b.asg = asg
	b.status = StatusSolved
	return nil
}

// Status distinguishes unsolved, solved and infeasible outcomes.
func (b *Builder) Status() Status { return b.status }

// Routes walks each vehicle's next relation and returns the route set with
// per-route metadata in scaled units. A vehicle whose start index is
// immediately its end index contributes a trivial [depot, depot] route.
func (b *Builder) Routes() ([][]int, []vrp.RouteMetadata) {
	if b.status != StatusSolved {
		return nil, nil
	}
	routes := make([][]int, 0, b.in.NumVehicles)
	meta := make([]vrp.RouteMetadata, 0, b.in.NumVehicles)
	for v := 0; v < b.in.NumVehicles; v++ {
		route := []int{}
		idx := b.asg.Start(v)
		for !b.asg.IsEnd(idx) {
			route = append(route, b.asg.Node(idx))
			idx = b.asg.Next(idx)
		}
		route = append(route, b.asg.Node(idx))
		routes = append(routes, route)
		meta = append(meta, vrp.RouteMetadata{
			Load: b.asg.Cumul(dimCapacity, idx),
			Time: float64(b.asg.Cumul(dimTime, idx)) / float64(b.in.TimeScaler),
		})
	}
	return routes, meta
}

// TotalTime sums every vehicle's end cumul on the time dimension, in caller
// units. Zero unless solved.
func (b *Builder) TotalTime() float64 {
	if b.status != StatusSolved {
		return 0
	}
	var total int64
	for v := 0; v < b.in.NumVehicles; v++ {
		idx := b.asg.Start(v)
		for !b.asg.IsEnd(idx) {
			idx = b.asg.Next(idx)
		}
		total += b.asg.Cumul(dimTime, idx)
	}
	return float64(total) / float64(b.in.TimeScaler)
}

// TotalTravelTime backs service time out of TotalTime to report pure
// transit time. Zero unless solved.
func (b *Builder) TotalTravelTime() float64 {
	if b.status != StatusSolved {
		return 0
	}
	var service int64
	for _, st := range b.in.ServiceTimes {
		service += st
	}
	return b.TotalTime() - float64(service)/float64(b.in.TimeScaler)
}

// NumVehiclesUsed counts vehicles whose route visits a non-depot node.
// Zero unless solved.
func (b *Builder) NumVehiclesUsed() int {
	if b.status != StatusSolved {
		return 0
	}
	used := 0
	for v := 0; v < b.in.NumVehicles; v++ {
		if !b.asg.IsEnd(b.asg.Next(b.asg.Start(v))) {
			used++
		}
	}
	return used
}

// Objective reports the engine's objective value in caller units. Zero
// unless solved.
func (b *Builder) Objective() float64 {
	if b.status != StatusSolved {
		return 0
	}
	return float64(b.asg.ObjectiveValue()) / float64(b.in.TimeScaler)
}

// Solution assembles the normalized result. For an unsolved or infeasible
// builder it returns the explicit empty Solution.
func (b *Builder) Solution() vrp.Solution {
	if b.status != StatusSolved {
		return vrp.Solution{}
	}
	routes, meta := b.Routes()
	sol := vrp.Solution{
		Routes:          make([]vrp.Route, 0, len(routes)),
		Metadata:        meta,
		Objective:       b.Objective(),
		NumVehiclesUsed: b.NumVehiclesUsed(),
		TotalTime:       b.TotalTime(),
		TotalTravelTime: b.TotalTravelTime(),
	}
	for _, r := range routes {
		sol.Routes = append(sol.Routes, vrp.Route(r))
	}
	return sol
}
