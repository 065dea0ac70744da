package model

import "vrpsolve/internal/vrp"

// SolveRequest is the caller-facing optimization request. JobID is
// optional; a client that wants to subscribe to progress before the call
// returns supplies its own identifier.
type SolveRequest struct {
	JobID               string `json:"jobId,omitempty"`
	DatasetID           string `json:"datasetId"`
	TimePrecisionScaler int64  `json:"timePrecisionScaler,omitempty"`
	TimeLimitSeconds    int    `json:"timeLimitSeconds,omitempty"`
	Method              string `json:"method"`
	Seed                int64  `json:"seed,omitempty"`
}

// SolveResponse carries the normalized result of one optimization call. On
// an infeasible outcome Status is "infeasible" and every metric is its zero
// value.
type SolveResponse struct {
	JobID           string              `json:"jobId"`
	DatasetID       string              `json:"datasetId"`
	Method          string              `json:"method"`
	Status          string              `json:"status"`
	Objective       float64             `json:"objective"`
	Routes          []vrp.Route         `json:"routes"`
	Metadata        []vrp.RouteMetadata `json:"metadata"`
	TotalTime       float64             `json:"totalTime"`
	TotalTravelTime float64             `json:"totalTravelTime"`
	NumVehiclesUsed int                 `json:"numVehiclesUsed"`
	ElapsedMs       int64               `json:"elapsedMs"`
}

// DatasetInfo summarizes a stored benchmark dataset.
type DatasetInfo struct {
	Name            string `json:"name"`
	NumVehicles     int    `json:"numVehicles"`
	VehicleCapacity int64  `json:"vehicleCapacity"`
	NumCustomers    int    `json:"numCustomers"`
}

// SolveRecord is the persisted outcome of a solve, kept for history
// queries.
type SolveRecord struct {
	JobID           string  `json:"jobId"`
	DatasetID       string  `json:"datasetId"`
	Method          string  `json:"method"`
	Status          string  `json:"status"`
	Objective       float64 `json:"objective"`
	NumVehiclesUsed int     `json:"numVehiclesUsed"`
	TotalTime       float64 `json:"totalTime"`
	ElapsedMs       int64   `json:"elapsedMs"`
	CreatedAt       string  `json:"createdAt"`
}

// Progress is one solve progress snapshot published to streams.
type Progress struct {
	JobID       string  `json:"jobId"`
	Method      string  `json:"method"`
	Generation  int     `json:"generation,omitempty"`
	BestFitness float64 `json:"bestFitness,omitempty"`
	Done        bool    `json:"done"`
	TS          string  `json:"ts"`
}

// SubscriptionRequest registers a webhook endpoint for solve events.
type SubscriptionRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret"`
}

// Subscription is a registered webhook endpoint.
type Subscription struct {
	ID     string   `json:"id"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret,omitempty"`
}
