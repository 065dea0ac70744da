// Package solomon parses Solomon CVRPTW benchmark files into problem
// instances.
package solomon

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"vrpsolve/internal/vrp"
)

type customer struct {
	id      int
	x, y    float64
	demand  int64
	ready   int64
	due     int64
	service int64
}

// Parse converts Solomon benchmark text into an Instance. Line 5 carries
// the vehicle count and shared capacity; customer rows start at line 9 as
// (id, x, y, demand, ready, due, service). All time values are scaled by
// scaler, and each arc time includes the service time at the destination,
// matching the window shift (ready+service, due+service).
func Parse(content string, scaler int64) (*vrp.Instance, error) {
	if scaler <= 0 {
		return nil, fmt.Errorf("solomon: scaler must be > 0, got %d", scaler)
	}
	lines := strings.Split(content, "\n")
	if len(lines) < 9 {
		return nil, fmt.Errorf("solomon: too few lines (%d)", len(lines))
	}
	nums := fields(lines[4])
	if len(nums) < 2 {
		return nil, fmt.Errorf("solomon: vehicle line %q", strings.TrimSpace(lines[4]))
	}
	numVehicles, capacity := int(nums[0]), nums[1]
	if numVehicles <= 0 {
		return nil, fmt.Errorf("solomon: vehicle count %d", numVehicles)
	}

	customers := []customer{}
	for lineNo, line := range lines[8:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		f := fields(line)
		if len(f) < 7 {
			return nil, fmt.Errorf("solomon: customer line %d has %d fields, want 7", lineNo+9, len(f))
		}
		customers = append(customers, customer{
			id:      int(f[0]),
			x:       float64(f[1]),
			y:       float64(f[2]),
			demand:  f[3],
			ready:   f[4] * scaler,
			due:     f[5] * scaler,
			service: f[6] * scaler,
		})
	}
	if len(customers) == 0 {
		return nil, fmt.Errorf("solomon: no customer rows")
	}

	n := len(customers)
	in := &vrp.Instance{
		Depot:             0,
		NumVehicles:       numVehicles,
		VehicleCapacities: make([]int64, numVehicles),
		Demands:           make([]int64, n),
		TimeMatrix:        make([][]int64, n),
		TimeWindows:       make([][2]int64, n),
		ServiceTimes:      make([]int64, n),
		TimeScaler:        scaler,
	}
	for v := range in.VehicleCapacities {
		in.VehicleCapacities[v] = capacity
	}
	for i, c := range customers {
		in.Demands[i] = c.demand
		in.ServiceTimes[i] = c.service
		in.TimeWindows[i] = [2]int64{c.ready + c.service, c.due + c.service}
		row := make([]int64, n)
		for j, o := range customers {
			if i == j {
				continue
			}
			travel := int64(float64(scaler) * math.Hypot(c.x-o.x, c.y-o.y))
			row[j] = travel + o.service
		}
		in.TimeMatrix[i] = row
	}
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("solomon: %w", err)
	}
	return in, nil
}

// fields extracts the integer tokens from a line, ignoring labels.
func fields(line string) []int64 {
	out := []int64{}
	for _, f := range strings.Fields(line) {
		if v, err := strconv.ParseInt(f, 10, 64); err == nil {
			out = append(out, v)
		}
	}
	return out
}
