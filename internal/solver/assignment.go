package solver

// searchAssignment is the LocalSearch result view. Indices are laid out
// per vehicle as [start, visit..., end] in one contiguous space so routes
// can be walked through the Next relation.
type searchAssignment struct {
	depot     int
	routes    [][]int
	base      []int
	objective int64
	cumuls    map[string][][]int64
}

func (e *LocalSearch) newAssignment(routes [][]int) *searchAssignment {
	a := &searchAssignment{
		depot:     e.depot,
		routes:    cloneRoutes(routes),
		base:      make([]int, len(routes)+1),
		objective: e.cost(routes),
		cumuls:    map[string][][]int64{},
	}
	for v, r := range routes {
		a.base[v+1] = a.base[v] + len(r) + 2
	}
	for _, d := range e.dims {
		per := make([][]int64, len(routes))
		for v, r := range routes {
			cum, _ := e.schedule(d, v, r)
			if d.finalize[v] && !d.startAtZero && d.slackMax > 0 {
				cum = e.minimizeStart(d, v, r, cum)
			}
			per[v] = cum
		}
		a.cumuls[d.name] = per
	}
	return a
}

// minimizeStart raises a route's start cumul as far as window bounds allow
// without delaying any visit past the first waiting point, so the end cumul
// stays minimal while idle waiting shrinks. The earliest schedule already
// minimizes the end cumul.
func (e *LocalSearch) minimizeStart(d *dimension, vehicle int, route []int, cum []int64) []int64 {
	if len(route) == 0 || len(cum) == 0 {
		return cum
	}
	raise := d.startHi[vehicle] - cum[0]
	waitAt := -1
	prev := e.depot
	for i, n := range route {
		arrival := cum[i] + d.value(prev, n)
		if wait := cum[i+1] - arrival; wait > 0 {
			if wait < raise {
				raise = wait
			}
			waitAt = i
			break
		}
		if room := d.nodeHi[n] - cum[i+1]; room < raise {
			raise = room
		}
		prev = n
	}
	if waitAt < 0 || raise <= 0 {
		return cum
	}
	out := append([]int64(nil), cum...)
	for i := 0; i <= waitAt; i++ {
		out[i] += raise
	}
	return out
}

func (a *searchAssignment) ObjectiveValue() int64 { return a.objective }

func (a *searchAssignment) Start(vehicle int) int { return a.base[vehicle] }

func (a *searchAssignment) Next(index int) int { return index + 1 }

func (a *searchAssignment) IsEnd(index int) bool {
	v, off := a.locate(index)
	return off == len(a.routes[v])+1
}

func (a *searchAssignment) Node(index int) int {
	v, off := a.locate(index)
	if off == 0 || off == len(a.routes[v])+1 {
		return a.depot
	}
	return a.routes[v][off-1]
}

func (a *searchAssignment) Cumul(dim string, index int) int64 {
	per, ok := a.cumuls[dim]
	if !ok {
		return 0
	}
	v, off := a.locate(index)
	return per[v][off]
}

func (a *searchAssignment) locate(index int) (vehicle, offset int) {
	for v := 0; v < len(a.routes); v++ {
		if index < a.base[v+1] {
			return v, index - a.base[v]
		}
	}
	last := len(a.routes) - 1
	return last, index - a.base[last]
}
