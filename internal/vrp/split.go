package vrp

// SplitRoutes partitions an ordered sequence of non-depot nodes into
// capacity-feasible routes with a single greedy pass. Each route starts and
// ends at the depot. Input order is preserved; no bin-packing search is
// attempted. A node whose own demand exceeds the vehicle capacity is still
// placed alone on a route: overload is penalized by the caller's fitness
// layer, not prevented here.
func SplitRoutes(nodes []int, in *Instance) [][]int {
	cap := in.Capacity()
	routes := [][]int{}
	route := []int{in.Depot}
	var load int64
	for _, node := range nodes {
		d := in.Demands[node]
		if len(route) > 1 && load+d > cap {
			routes = append(routes, append(route, in.Depot))
			route = []int{in.Depot}
			load = 0
		}
		route = append(route, node)
		load += d
	}
	// the final route is closed and appended even when empty
	routes = append(routes, append(route, in.Depot))
	return routes
}
