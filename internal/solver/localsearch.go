package solver

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// LocalSearch is the in-process Engine implementation: a parallel cheapest
// insertion first solution improved by guided local search (relocate, swap
// and intra-route 2-opt under arc penalties) until the time limit.
type LocalSearch struct {
	numNodes    int
	numVehicles int
	depot       int
	arcCost     TransitFunc
	fixedCost   int64
	dims        []*dimension
	byName      map[string]*dimension
}

type dimension struct {
	name        string
	unary       DemandFunc
	binary      TransitFunc
	slackMax    int64
	caps        []int64
	startAtZero bool
	nodeLo      []int64
	nodeHi      []int64
	startLo     []int64
	startHi     []int64
	finalize    []bool
}

const unbounded = int64(1) << 62

// NewLocalSearch returns an empty engine; the builder drives registration
// through the Engine interface.
func NewLocalSearch() *LocalSearch {
	return &LocalSearch{byName: map[string]*dimension{}}
}

func (e *LocalSearch) Init(numNodes, numVehicles, depot int) {
	e.numNodes = numNodes
	e.numVehicles = numVehicles
	e.depot = depot
	e.dims = nil
	e.byName = map[string]*dimension{}
}

func (e *LocalSearch) SetArcCost(transit TransitFunc) { e.arcCost = transit }

func (e *LocalSearch) SetFixedVehicleCost(cost int64) { e.fixedCost = cost }

func (e *LocalSearch) AddDimension(name string, unary DemandFunc, binary TransitFunc, slackMax int64, capacities []int64, startAtZero bool) error {
	if _, dup := e.byName[name]; dup {
		return fmt.Errorf("dimension %q already registered", name)
	}
	if (unary == nil) == (binary == nil) {
		return fmt.Errorf("dimension %q needs exactly one evaluator", name)
	}
	if len(capacities) != e.numVehicles {
		return fmt.Errorf("dimension %q: %d capacities for %d vehicles", name, len(capacities), e.numVehicles)
	}
	d := &dimension{
		name:        name,
		unary:       unary,
		binary:      binary,
		slackMax:    slackMax,
		caps:        append([]int64(nil), capacities...),
		startAtZero: startAtZero,
		nodeLo:      make([]int64, e.numNodes),
		nodeHi:      make([]int64, e.numNodes),
		startLo:     make([]int64, e.numVehicles),
		startHi:     make([]int64, e.numVehicles),
		finalize:    make([]bool, e.numVehicles),
	}
	for n := range d.nodeHi {
		d.nodeHi[n] = unbounded
	}
	for v := range d.startHi {
		d.startHi[v] = unbounded
	}
	e.dims = append(e.dims, d)
	e.byName[name] = d
	return nil
}

func (e *LocalSearch) SetCumulRange(dim string, node int, lo, hi int64) error {
	d, ok := e.byName[dim]
	if !ok {
		return fmt.Errorf("unknown dimension %q", dim)
	}
	if node < 0 || node >= e.numNodes {
		return fmt.Errorf("node %d out of range", node)
	}
	d.nodeLo[node], d.nodeHi[node] = lo, hi
	return nil
}

func (e *LocalSearch) SetStartCumulRange(dim string, vehicle int, lo, hi int64) error {
	d, ok := e.byName[dim]
	if !ok {
		return fmt.Errorf("unknown dimension %q", dim)
	}
	if vehicle < 0 || vehicle >= e.numVehicles {
		return fmt.Errorf("vehicle %d out of range", vehicle)
	}
	d.startLo[vehicle], d.startHi[vehicle] = lo, hi
	return nil
}

func (e *LocalSearch) MinimizeStartEndCumul(dim string, vehicle int) {
	if d, ok := e.byName[dim]; ok && vehicle >= 0 && vehicle < e.numVehicles {
		d.finalize[vehicle] = true
	}
}

func (d *dimension) value(from, to int) int64 {
	if d.binary != nil {
		return d.binary(from, to)
	}
	return d.unary(from)
}

// schedule propagates a dimension along one vehicle's customer sequence.
// The returned cumuls cover [start, each visit..., end]. Waiting up to
// slackMax is inserted when a cumul lands before a node's lower bound; a
// cumul above a node bound or the vehicle capacity is infeasible.
func (e *LocalSearch) schedule(d *dimension, vehicle int, route []int) ([]int64, bool) {
	var c int64
	if !d.startAtZero {
		c = d.startLo[vehicle]
	}
	if c > d.startHi[vehicle] || c > d.caps[vehicle] {
		return nil, false
	}
	cum := make([]int64, 0, len(route)+2)
	cum = append(cum, c)
	prev := e.depot
	for _, n := range route {
		c += d.value(prev, n)
		if c < d.nodeLo[n] {
			if d.nodeLo[n]-c > d.slackMax {
				return nil, false
			}
			c = d.nodeLo[n]
		}
		if c > d.nodeHi[n] || c > d.caps[vehicle] {
			return nil, false
		}
		cum = append(cum, c)
		prev = n
	}
	c += d.value(prev, e.depot)
	if c > d.caps[vehicle] {
		return nil, false
	}
	cum = append(cum, c)
	return cum, true
}

func (e *LocalSearch) feasible(vehicle int, route []int) bool {
	for _, d := range e.dims {
		if _, ok := e.schedule(d, vehicle, route); !ok {
			return false
		}
	}
	return true
}

func (e *LocalSearch) routeCost(route []int) int64 {
	if len(route) == 0 {
		return 0
	}
	c := e.arcCost(e.depot, route[0])
	for i := 0; i+1 < len(route); i++ {
		c += e.arcCost(route[i], route[i+1])
	}
	return c + e.arcCost(route[len(route)-1], e.depot)
}

func (e *LocalSearch) cost(routes [][]int) int64 {
	var c int64
	for _, r := range routes {
		if len(r) > 0 {
			c += e.fixedCost + e.routeCost(r)
		}
	}
	return c
}

// Solve seeds a solution and improves it until the time limit or context
// deadline. It returns ErrInfeasible when some node cannot be feasibly
// placed on any vehicle.
func (e *LocalSearch) Solve(ctx context.Context, params SearchParams) (Assignment, error) {
	if e.arcCost == nil {
		return nil, errors.New("arc cost evaluator not registered")
	}
	seed := params.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	limit := params.TimeLimit
	if limit <= 0 {
		limit = time.Second
	}
	deadline := time.Now().Add(limit)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	routes, err := e.seedRoutes()
	if err != nil {
		return nil, err
	}
	routes = e.improve(ctx, routes, deadline, rng)
	return e.newAssignment(routes), nil
}

// seedRoutes builds the first solution by parallel cheapest insertion:
// repeatedly place the globally cheapest feasible (node, vehicle, position)
// triple, charging the fixed cost when a vehicle is opened.
func (e *LocalSearch) seedRoutes() ([][]int, error) {
	routes := make([][]int, e.numVehicles)
	unassigned := []int{}
	for n := 0; n < e.numNodes; n++ {
		if n != e.depot {
			unassigned = append(unassigned, n)
		}
	}
	for len(unassigned) > 0 {
		bestNi, bestV, bestPos := -1, -1, -1
		bestDelta := unbounded
		for ni, node := range unassigned {
			for v := 0; v < e.numVehicles; v++ {
				for pos := 0; pos <= len(routes[v]); pos++ {
					delta := e.insertDelta(routes[v], pos, node)
					if delta >= bestDelta {
						continue
					}
					cand := insertAt(routes[v], pos, node)
					if !e.feasible(v, cand) {
						continue
					}
					bestNi, bestV, bestPos, bestDelta = ni, v, pos, delta
				}
			}
		}
		if bestNi < 0 {
			return nil, ErrInfeasible
		}
		routes[bestV] = insertAt(routes[bestV], bestPos, unassigned[bestNi])
		unassigned = append(unassigned[:bestNi], unassigned[bestNi+1:]...)
	}
	return routes, nil
}

func (e *LocalSearch) insertDelta(route []int, pos, node int) int64 {
	prev, next := e.depot, e.depot
	if pos > 0 {
		prev = route[pos-1]
	}
	if pos < len(route) {
		next = route[pos]
	}
	delta := e.arcCost(prev, node) + e.arcCost(node, next) - e.arcCost(prev, next)
	if len(route) == 0 {
		delta += e.fixedCost
	}
	return delta
}

func insertAt(route []int, pos, node int) []int {
	out := make([]int, 0, len(route)+1)
	out = append(out, route[:pos]...)
	out = append(out, node)
	return append(out, route[pos:]...)
}

// improve runs guided local search: descend to a local optimum of the
// penalty-augmented cost, then penalize the highest-utility arcs of the
// optimum and continue, keeping the best true-cost solution seen.
func (e *LocalSearch) improve(ctx context.Context, routes [][]int, deadline time.Time, rng *rand.Rand) [][]int {
	best := cloneRoutes(routes)
	bestCost := e.cost(best)
	cur := cloneRoutes(routes)
	penalties := map[[2]int]int64{}
	lambda := e.glsLambda(best)

	for time.Now().Before(deadline) && ctx.Err() == nil {
		moved := e.descend(ctx, cur, penalties, lambda, deadline)
		if c := e.cost(cur); c < bestCost {
			bestCost = c
			best = cloneRoutes(cur)
		}
		if !moved {
			e.penalizeArcs(cur, penalties)
		}
	}
	return best
}

// glsLambda scales arc penalties to a fraction of the mean arc cost, the
// usual GLS calibration.
func (e *LocalSearch) glsLambda(routes [][]int) int64 {
	var total, arcs int64
	for _, r := range routes {
		if len(r) == 0 {
			continue
		}
		total += e.routeCost(r)
		arcs += int64(len(r)) + 1
	}
	if arcs == 0 {
		return 1
	}
	l := total / (arcs * 10)
	if l < 1 {
		l = 1
	}
	return l
}

func (e *LocalSearch) augmented(routes [][]int, penalties map[[2]int]int64, lambda int64) int64 {
	c := e.cost(routes)
	if len(penalties) == 0 {
		return c
	}
	for _, r := range routes {
		prev := e.depot
		for _, n := range r {
			c += lambda * penalties[[2]int{prev, n}]
			prev = n
		}
		if len(r) > 0 {
			c += lambda * penalties[[2]int{prev, e.depot}]
		}
	}
	return c
}

// descend applies first-improvement relocate, swap and intra-route 2-opt
// moves on the augmented cost until no move improves. Mutates routes in
// place and reports whether any move was applied.
func (e *LocalSearch) descend(ctx context.Context, routes [][]int, penalties map[[2]int]int64, lambda int64, deadline time.Time) bool {
	movedAny := false
	for {
		if time.Now().After(deadline) || ctx.Err() != nil {
			return movedAny
		}
		curAug := e.augmented(routes, penalties, lambda)
		if e.tryRelocate(routes, penalties, lambda, curAug) ||
			e.trySwap(routes, penalties, lambda, curAug) ||
			e.tryTwoOpt(routes, penalties, lambda, curAug) {
			movedAny = true
			continue
		}
		return movedAny
	}
}

func (e *LocalSearch) tryRelocate(routes [][]int, penalties map[[2]int]int64, lambda, curAug int64) bool {
	for v1 := range routes {
		for i := range routes[v1] {
			node := routes[v1][i]
			removed := removeAt(routes[v1], i)
			for v2 := range routes {
				for pos := 0; pos <= lenWithout(routes, v1, v2, removed); pos++ {
					target := routes[v2]
					if v2 == v1 {
						target = removed
						if pos == i {
							continue
						}
					}
					cand := insertAt(target, pos, node)
					if !e.feasible(v2, cand) {
						continue
					}
					trial := swapOut(routes, v1, removed, v2, cand)
					if v1 != v2 && !e.feasible(v1, removed) {
						continue
					}
					if e.augmented(trial, penalties, lambda) < curAug {
						copyRoutes(routes, trial)
						return true
					}
				}
			}
		}
	}
	return false
}

func (e *LocalSearch) trySwap(routes [][]int, penalties map[[2]int]int64, lambda, curAug int64) bool {
	for v1 := range routes {
		for v2 := v1; v2 < len(routes); v2++ {
			for i := range routes[v1] {
				jStart := 0
				if v1 == v2 {
					jStart = i + 1
				}
				for j := jStart; j < len(routes[v2]); j++ {
					r1 := append([]int(nil), routes[v1]...)
					r2 := r1
					if v1 != v2 {
						r2 = append([]int(nil), routes[v2]...)
					}
					r1[i], r2[j] = r2[j], r1[i]
					if !e.feasible(v1, r1) || (v1 != v2 && !e.feasible(v2, r2)) {
						continue
					}
					trial := swapOut(routes, v1, r1, v2, r2)
					if e.augmented(trial, penalties, lambda) < curAug {
						copyRoutes(routes, trial)
						return true
					}
				}
			}
		}
	}
	return false
}

func (e *LocalSearch) tryTwoOpt(routes [][]int, penalties map[[2]int]int64, lambda, curAug int64) bool {
	for v := range routes {
		r := routes[v]
		for i := 0; i < len(r)-1; i++ {
			for j := i + 1; j < len(r); j++ {
				cand := append([]int(nil), r...)
				for a, b := i, j; a < b; a, b = a+1, b-1 {
					cand[a], cand[b] = cand[b], cand[a]
				}
				if !e.feasible(v, cand) {
					continue
				}
				trial := swapOut(routes, v, cand, v, cand)
				if e.augmented(trial, penalties, lambda) < curAug {
					copyRoutes(routes, trial)
					return true
				}
			}
		}
	}
	return false
}

// penalizeArcs increments the penalty of the used arcs with maximal
// utility cost/(1+penalty), diversifying away from the local optimum.
func (e *LocalSearch) penalizeArcs(routes [][]int, penalties map[[2]int]int64) {
	var bestUtil float64
	var bestArcs [][2]int
	forEachArc(routes, e.depot, func(from, to int) {
		util := float64(e.arcCost(from, to)) / float64(1+penalties[[2]int{from, to}])
		switch {
		case util > bestUtil:
			bestUtil = util
			bestArcs = [][2]int{{from, to}}
		case util == bestUtil && util > 0:
			bestArcs = append(bestArcs, [2]int{from, to})
		}
	})
	for _, a := range bestArcs {
		penalties[a]++
	}
}

func forEachArc(routes [][]int, depot int, fn func(from, to int)) {
	for _, r := range routes {
		if len(r) == 0 {
			continue
		}
		prev := depot
		for _, n := range r {
			fn(prev, n)
			prev = n
		}
		fn(prev, depot)
	}
}

func cloneRoutes(routes [][]int) [][]int {
	out := make([][]int, len(routes))
	for i, r := range routes {
		out[i] = append([]int(nil), r...)
	}
	return out
}

func copyRoutes(dst, src [][]int) {
	for i := range src {
		dst[i] = append([]int(nil), src[i]...)
	}
}

func removeAt(route []int, i int) []int {
	out := make([]int, 0, len(route)-1)
	out = append(out, route[:i]...)
	return append(out, route[i+1:]...)
}

// swapOut returns a shallow trial copy of routes with two vehicles' routes
// replaced.
func swapOut(routes [][]int, v1 int, r1 []int, v2 int, r2 []int) [][]int {
	trial := make([][]int, len(routes))
	copy(trial, routes)
	trial[v1] = r1
	trial[v2] = r2
	return trial
}

func lenWithout(routes [][]int, v1, v2 int, removed []int) int {
	if v1 == v2 {
		return len(removed)
	}
	return len(routes[v2])
}
