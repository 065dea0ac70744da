// Package genetic implements a population-based CVRP heuristic. It never
// fails on infeasibility: capacity violations are soft-penalized in the
// fitness, so the engine always returns a best-effort route set.
package genetic

import (
	"context"
	"math/rand"
	"time"

	"vrpsolve/internal/vrp"
)

// Config controls the search. Zero values fall back to the defaults used by
// Run.
type Config struct {
	PopulationSize int
	Generations    int
	TournamentSize int
	PenaltyWeight  int64
	Seed           int64
	// Progress, when set, is invoked once per generation with the
	// generation number and the best-ever fitness.
	Progress func(generation int, bestFitness int64)
}

const (
	defaultPopulation = 50
	defaultGens       = 100
	defaultTournament = 5
	defaultPenalty    = 1000
)

type individual struct {
	routes  [][]int
	fitness int64
}

// Run evolves a population for a fixed number of generations and returns
// the best route set ever observed with its fitness. The context bounds the
// generation loop: cancellation stops after the current generation and
// returns the best individual so far.
func Run(ctx context.Context, in *vrp.Instance, cfg Config) ([][]int, int64) {
	if cfg.PopulationSize <= 0 {
		cfg.PopulationSize = defaultPopulation
	}
	if cfg.Generations <= 0 {
		cfg.Generations = defaultGens
	}
	if cfg.TournamentSize <= 0 {
		cfg.TournamentSize = defaultTournament
	}
	if cfg.PenaltyWeight <= 0 {
		cfg.PenaltyWeight = defaultPenalty
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	pop := initialize(in, cfg.PopulationSize, rng)
	for i := range pop {
		pop[i].fitness = Fitness(pop[i].routes, in, cfg.PenaltyWeight)
	}
	best := clone(bestOf(pop))

	for gen := 0; gen < cfg.Generations; gen++ {
		next := make([]individual, 0, cfg.PopulationSize)
		for len(next) < cfg.PopulationSize {
			p1 := tournament(pop, cfg.TournamentSize, rng)
			p2 := tournament(pop, cfg.TournamentSize, rng)
			child := crossover(p1.routes, p2.routes, in, rng)
			mutate(child, rng)
			next = append(next, individual{routes: child, fitness: Fitness(child, in, cfg.PenaltyWeight)})
		}
		pop = next
		if cur := bestOf(pop); cur.fitness < best.fitness {
			best = clone(cur)
		}
		if cfg.Progress != nil {
			cfg.Progress(gen+1, best.fitness)
		}
		select {
		case <-ctx.Done():
			return best.routes, best.fitness
		default:
		}
	}
	return best.routes, best.fitness
}

// Fitness scores a route set: travel time plus a large penalty per unit of
// demand over capacity, summed over non-trivial routes. Lower is better.
// Pure function of the routes and instance.
func Fitness(routes [][]int, in *vrp.Instance, penalty int64) int64 {
	cap := in.Capacity()
	var total int64
	for _, route := range routes {
		if len(route) <= 1 {
			continue
		}
		total += vrp.RouteTime(route, in)
		if over := vrp.RouteLoad(route, in) - cap; over > 0 {
			total += over * penalty
		}
	}
	return total
}

func initialize(in *vrp.Instance, size int, rng *rand.Rand) []individual {
	customers := make([]int, 0, in.NumNodes()-1)
	for n := 0; n < in.NumNodes(); n++ {
		if n != in.Depot {
			customers = append(customers, n)
		}
	}
	pop := make([]individual, size)
	for i := range pop {
		perm := append([]int(nil), customers...)
		rng.Shuffle(len(perm), func(a, b int) { perm[a], perm[b] = perm[b], perm[a] })
		pop[i] = individual{routes: vrp.SplitRoutes(perm, in)}
	}
	return pop
}

// tournament samples k distinct individuals and returns the fittest.
// Successive tournaments sample with replacement from the population.
func tournament(pop []individual, k int, rng *rand.Rand) individual {
	if k > len(pop) {
		k = len(pop)
	}
	idx := rng.Perm(len(pop))[:k]
	best := pop[idx[0]]
	for _, i := range idx[1:] {
		if pop[i].fitness < best.fitness {
			best = pop[i]
		}
	}
	return best
}

// crossover performs order crossover (OX): a random slice of parent 1's
// flattened customer sequence, then parent 2's customers in order skipping
// duplicates. The offspring is re-split into capacity-feasible routes, so it
// is always a permutation of the full customer set.
func crossover(p1, p2 [][]int, in *vrp.Instance, rng *rand.Rand) [][]int {
	n1 := flatten(p1, in.Depot)
	n2 := flatten(p2, in.Depot)
	if len(n1) < 2 {
		return vrp.SplitRoutes(n1, in)
	}
	start, end := rng.Intn(len(n1)), rng.Intn(len(n1))
	for end == start {
		end = rng.Intn(len(n1))
	}
	if start > end {
		start, end = end, start
	}
	child := append([]int(nil), n1[start:end+1]...)
	seen := make(map[int]bool, len(child))
	for _, n := range child {
		seen[n] = true
	}
	for _, n := range n2 {
		if !seen[n] {
			child = append(child, n)
			seen[n] = true
		}
	}
	return vrp.SplitRoutes(child, in)
}

// mutate swaps two interior positions within a route. It considers routes
// with at least two non-depot nodes and only triggers the swap when a route
// has three or more, so depot endpoints are never touched and swaps stay
// route-local.
func mutate(routes [][]int, rng *rand.Rand) {
	for _, route := range routes {
		interior := len(route) - 2
		if interior >= 2 {
			if interior >= 3 {
				i := 1 + rng.Intn(interior)
				j := 1 + rng.Intn(interior)
				for j == i {
					j = 1 + rng.Intn(interior)
				}
				route[i], route[j] = route[j], route[i]
			}
		}
	}
}

func flatten(routes [][]int, depot int) []int {
	out := []int{}
	for _, route := range routes {
		for _, n := range route {
			if n != depot {
				out = append(out, n)
			}
		}
	}
	return out
}

func bestOf(pop []individual) individual {
	best := pop[0]
	for _, ind := range pop[1:] {
		if ind.fitness < best.fitness {
			best = ind
		}
	}
	return best
}

func clone(ind individual) individual {
	routes := make([][]int, len(ind.routes))
	for i, r := range ind.routes {
		routes[i] = append([]int(nil), r...)
	}
	return individual{routes: routes, fitness: ind.fitness}
}
