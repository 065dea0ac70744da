package vrp

// Route is an ordered node sequence beginning and ending at the depot.
// The trivial route [depot, depot] marks an unused vehicle.
type Route []int

// RouteMetadata carries the cumulative load and time at a route's end.
// Time is in caller units (already divided by the instance TimeScaler).
type RouteMetadata struct {
	Load int64   `json:"load"`
	Time float64 `json:"time"`
}

// Solution is the normalized output shape shared by both solving
// strategies.
type Solution struct {
	Routes          []Route         `json:"routes"`
	Metadata        []RouteMetadata `json:"metadata"`
	Objective       float64         `json:"objective"`
	NumVehiclesUsed int             `json:"numVehiclesUsed"`
	TotalTime       float64         `json:"totalTime"`
	TotalTravelTime float64         `json:"totalTravelTime"`
}

// IsTrivial reports whether the route visits no non-depot node.
func (r Route) IsTrivial(depot int) bool {
	for _, n := range r {
		if n != depot {
			return false
		}
	}
	return true
}

// RouteTime sums consecutive time-matrix entries along a route, in scaled
// units.
func RouteTime(route []int, in *Instance) int64 {
	var t int64
	for i := 0; i+1 < len(route); i++ {
		t += in.TimeMatrix[route[i]][route[i+1]]
	}
	return t
}

// RouteLoad sums non-depot demands along a route.
func RouteLoad(route []int, in *Instance) int64 {
	var load int64
	for _, n := range route {
		if n != in.Depot {
			load += in.Demands[n]
		}
	}
	return load
}

// Summarize normalizes a raw route set into a Solution: per-route metadata
// recomputed from the instance, scaled times converted back to caller units,
// and total travel time with service time backed out.
func Summarize(routes [][]int, objective int64, in *Instance) Solution {
	scaler := float64(in.TimeScaler)
	sol := Solution{
		Routes:    make([]Route, 0, len(routes)),
		Metadata:  make([]RouteMetadata, 0, len(routes)),
		Objective: float64(objective) / scaler,
	}
	var totalService int64
	for _, st := range in.ServiceTimes {
		totalService += st
	}
	for _, route := range routes {
		r := Route(append([]int(nil), route...))
		sol.Routes = append(sol.Routes, r)
		sol.Metadata = append(sol.Metadata, RouteMetadata{
			Load: RouteLoad(route, in),
			Time: float64(RouteTime(route, in)) / scaler,
		})
		if !r.IsTrivial(in.Depot) {
			sol.NumVehiclesUsed++
			sol.TotalTime += float64(RouteTime(route, in)) / scaler
		}
	}
	if sol.NumVehiclesUsed > 0 {
		sol.TotalTravelTime = sol.TotalTime - float64(totalService)/scaler
	}
	return sol
}
