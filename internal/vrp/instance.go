// Package vrp holds the problem instance model and route primitives shared
// by every solving strategy.
package vrp

import "fmt"

// Instance is an immutable CVRPTW problem description. Node 0 is the depot.
// All time-valued fields are integers pre-scaled by TimeScaler (e.g. 100
// means two decimal places); TimeMatrix entries already include the service
// time at the destination node.
type Instance struct {
	Depot             int
	NumVehicles       int
	VehicleCapacities []int64
	Demands           []int64
	TimeMatrix        [][]int64
	TimeWindows       [][2]int64
	ServiceTimes      []int64
	TimeScaler        int64
}

// NumNodes returns the node count including the depot.
func (in *Instance) NumNodes() int { return len(in.Demands) }

// Capacity returns the shared vehicle capacity. The model carries
// per-vehicle capacities, but current datasets are homogeneous and the
// splitter and GA treat the fleet as one capacity value.
func (in *Instance) Capacity() int64 {
	if len(in.VehicleCapacities) == 0 {
		return 0
	}
	return in.VehicleCapacities[0]
}

// Validate checks the structural invariants. It is called before any search
// begins; a violation is fatal for the optimization call.
func (in *Instance) Validate() error {
	n := len(in.Demands)
	if n == 0 {
		return fmt.Errorf("malformed instance: no nodes")
	}
	if in.Depot < 0 || in.Depot >= n {
		return fmt.Errorf("malformed instance: depot %d out of range [0,%d)", in.Depot, n)
	}
	if in.Demands[in.Depot] != 0 {
		return fmt.Errorf("malformed instance: depot demand must be 0, got %d", in.Demands[in.Depot])
	}
	if in.NumVehicles <= 0 {
		return fmt.Errorf("malformed instance: numVehicles must be > 0, got %d", in.NumVehicles)
	}
	if len(in.VehicleCapacities) != in.NumVehicles {
		return fmt.Errorf("malformed instance: %d capacities for %d vehicles", len(in.VehicleCapacities), in.NumVehicles)
	}
	if len(in.TimeMatrix) != n {
		return fmt.Errorf("malformed instance: time matrix has %d rows, want %d", len(in.TimeMatrix), n)
	}
	for i, row := range in.TimeMatrix {
		if len(row) != n {
			return fmt.Errorf("malformed instance: time matrix row %d has %d cols, want %d", i, len(row), n)
		}
	}
	if len(in.TimeWindows) != n {
		return fmt.Errorf("malformed instance: %d time windows for %d nodes", len(in.TimeWindows), n)
	}
	if len(in.ServiceTimes) != n {
		return fmt.Errorf("malformed instance: %d service times for %d nodes", len(in.ServiceTimes), n)
	}
	if in.TimeScaler <= 0 {
		return fmt.Errorf("malformed instance: timeScaler must be > 0, got %d", in.TimeScaler)
	}
	dw := in.TimeWindows[in.Depot]
	if dw[0] > 0 || dw[1] < 0 {
		return fmt.Errorf("malformed instance: depot window [%d,%d] must contain 0", dw[0], dw[1])
	}
	return nil
}
