package genetic

import (
	"context"
	"reflect"
	"sort"
	"testing"

	"vrpsolve/internal/vrp"
)

func testInstance(demands []int64, cap int64) *vrp.Instance {
	n := len(demands)
	m := make([][]int64, n)
	for i := range m {
		m[i] = make([]int64, n)
		for j := range m[i] {
			if i != j {
				d := i - j
				if d < 0 {
					d = -d
				}
				m[i][j] = int64(d * 7)
			}
		}
	}
	windows := make([][2]int64, n)
	for i := range windows {
		windows[i] = [2]int64{0, 1 << 40}
	}
	caps := make([]int64, n)
	for i := range caps {
		caps[i] = cap
	}
	return &vrp.Instance{
		Depot:             0,
		NumVehicles:       n,
		VehicleCapacities: caps,
		Demands:           demands,
		TimeMatrix:        m,
		TimeWindows:       windows,
		ServiceTimes:      make([]int64, n),
		TimeScaler:        1,
	}
}

func customersOf(routes [][]int) []int {
	out := []int{}
	for _, r := range routes {
		for _, n := range r {
			if n != 0 {
				out = append(out, n)
			}
		}
	}
	sort.Ints(out)
	return out
}

func TestRunDeterministicUnderSeed(t *testing.T) {
	in := testInstance([]int64{0, 3, 5, 2, 7, 1, 4}, 10)
	cfg := Config{PopulationSize: 20, Generations: 30, Seed: 7}
	r1, f1 := Run(context.Background(), in, cfg)
	r2, f2 := Run(context.Background(), in, cfg)
	if f1 != f2 {
		t.Fatalf("fitness differs under same seed: %d vs %d", f1, f2)
	}
	if !reflect.DeepEqual(r1, r2) {
		t.Fatalf("routes differ under same seed:\n%v\n%v", r1, r2)
	}
}

func TestRunVisitsEveryCustomerOnce(t *testing.T) {
	in := testInstance([]int64{0, 3, 5, 2, 7, 1, 4, 2, 3}, 12)
	routes, _ := Run(context.Background(), in, Config{PopulationSize: 15, Generations: 20, Seed: 3})
	got := customersOf(routes)
	want := []int{1, 2, 3, 4, 5, 6, 7, 8}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("customer multiset: got %v, want %v", got, want)
	}
}

func TestRunRespectsCapacityOnFeasibleInstances(t *testing.T) {
	in := testInstance([]int64{0, 4, 4, 4, 4}, 8)
	routes, best := Run(context.Background(), in, Config{PopulationSize: 30, Generations: 50, Seed: 11})
	for _, r := range routes {
		if load := vrp.RouteLoad(r, in); load > 8 {
			t.Fatalf("route over capacity: %v load %d", r, load)
		}
	}
	// a feasible split exists, so the penalty term must not appear
	if best >= defaultPenalty {
		t.Fatalf("best fitness %d suggests a capacity penalty", best)
	}
}

func TestBestFitnessMonotone(t *testing.T) {
	in := testInstance([]int64{0, 3, 5, 2, 7, 1, 4}, 10)
	var history []int64
	cfg := Config{
		PopulationSize: 20,
		Generations:    40,
		Seed:           5,
		Progress:       func(_ int, best int64) { history = append(history, best) },
	}
	_, final := Run(context.Background(), in, cfg)
	if len(history) != 40 {
		t.Fatalf("progress calls: got %d, want 40", len(history))
	}
	for i := 1; i < len(history); i++ {
		if history[i] > history[i-1] {
			t.Fatalf("best fitness regressed at generation %d: %d -> %d", i+1, history[i-1], history[i])
		}
	}
	if final != history[len(history)-1] {
		t.Fatalf("final fitness %d != last reported %d", final, history[len(history)-1])
	}
}

func TestRunZeroCustomers(t *testing.T) {
	in := testInstance([]int64{0}, 10)
	routes, best := Run(context.Background(), in, Config{PopulationSize: 5, Generations: 5, Seed: 1})
	if best != 0 {
		t.Fatalf("fitness: got %d, want 0", best)
	}
	if got := customersOf(routes); len(got) != 0 {
		t.Fatalf("expected no customers, got %v", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	in := testInstance([]int64{0, 3, 5, 2, 7, 1, 4}, 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	routes, _ := Run(ctx, in, Config{PopulationSize: 10, Generations: 1 << 20, Seed: 2})
	got := customersOf(routes)
	want := []int{1, 2, 3, 4, 5, 6}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("cancelled run returned bad routes: %v", routes)
	}
}

func TestFitness(t *testing.T) {
	in := testInstance([]int64{0, 4, 4}, 8)
	// trivial routes contribute nothing
	if got := Fitness([][]int{{0, 0}}, in, 1000); got != 0 {
		t.Fatalf("trivial fitness: got %d", got)
	}
	// travel only when under capacity
	routes := [][]int{{0, 1, 2, 0}}
	want := in.TimeMatrix[0][1] + in.TimeMatrix[1][2] + in.TimeMatrix[2][0]
	if got := Fitness(routes, in, 1000); got != want {
		t.Fatalf("fitness: got %d, want %d", got, want)
	}
	// overload adds penalty per unit over
	in2 := testInstance([]int64{0, 4, 4}, 6)
	if got := Fitness(routes, in2, 1000); got != want+2*1000 {
		t.Fatalf("penalized fitness: got %d, want %d", got, want+2*1000)
	}
}
