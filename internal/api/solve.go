package api

import (
	"context"
	"time"

	"github.com/google/uuid"

	"vrpsolve/internal/genetic"
	"vrpsolve/internal/metrics"
	"vrpsolve/internal/model"
	"vrpsolve/internal/solomon"
	"vrpsolve/internal/solver"
	"vrpsolve/internal/vrp"
)

const defaultTimeLimitSeconds = 30

// runSolve executes one optimization call end to end: parse the dataset,
// run the requested method, publish progress, record history and emit the
// completion webhook.
func (s *Server) runSolve(ctx context.Context, req model.SolveRequest) (model.SolveResponse, error) {
	content, err := s.Store.GetDataset(ctx, req.DatasetID)
	if err != nil {
		return model.SolveResponse{}, err
	}
	scaler := req.TimePrecisionScaler
	if scaler == 0 {
		scaler = int64(s.Cfg.DefaultTimeScaler)
	}
	in, err := solomon.Parse(content, scaler)
	if err != nil {
		return model.SolveResponse{}, err
	}

	method := req.Method
	if method == "" {
		method = "exact"
	}
	timeLimit := time.Duration(req.TimeLimitSeconds) * time.Second
	if timeLimit == 0 {
		timeLimit = defaultTimeLimitSeconds * time.Second
	}

	jobID := req.JobID
	if jobID == "" {
		jobID = uuid.New().String()
	}
	started := time.Now()

	var sol vrp.Solution
	status := "solved"
	switch method {
	case "heuristic":
		sol = s.runGenetic(ctx, jobID, in, req.Seed)
	default:
		sol, status, err = s.runEngine(ctx, in, timeLimit, req.Seed)
		if err != nil {
			return model.SolveResponse{}, err
		}
	}
	elapsed := time.Since(started)

	resp := model.SolveResponse{
		JobID:           jobID,
		DatasetID:       req.DatasetID,
		Method:          method,
		Status:          status,
		Objective:       sol.Objective,
		Routes:          sol.Routes,
		Metadata:        sol.Metadata,
		TotalTime:       sol.TotalTime,
		TotalTravelTime: sol.TotalTravelTime,
		NumVehiclesUsed: sol.NumVehiclesUsed,
		ElapsedMs:       elapsed.Milliseconds(),
	}

	metrics.Solves.WithLabelValues(method, status).Inc()
	metrics.SolveDuration.WithLabelValues(method).Observe(elapsed.Seconds())

	s.Progress.Upsert(model.Progress{
		JobID: jobID, Method: method, Done: true,
		TS: time.Now().UTC().Format(time.RFC3339),
	})
	s.Broker.Publish(jobID, SSEEvent{Type: "solve.completed", Data: map[string]any{
		"jobId":           jobID,
		"status":          status,
		"objective":       resp.Objective,
		"numVehiclesUsed": resp.NumVehiclesUsed,
	}})
	s.Pub.Emit(ctx, "solve.completed", resp)

	rec := model.SolveRecord{
		JobID:           jobID,
		DatasetID:       req.DatasetID,
		Method:          method,
		Status:          status,
		Objective:       resp.Objective,
		NumVehiclesUsed: resp.NumVehiclesUsed,
		TotalTime:       resp.TotalTime,
		ElapsedMs:       resp.ElapsedMs,
		CreatedAt:       time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.Store.SaveSolveRecord(ctx, rec); err != nil {
		return resp, err
	}
	return resp, nil
}

func (s *Server) runEngine(ctx context.Context, in *vrp.Instance, timeLimit time.Duration, seed int64) (vrp.Solution, string, error) {
	b, err := solver.NewBuilder(in, solver.NewLocalSearch())
	if err != nil {
		return vrp.Solution{}, "", err
	}
	if err := b.Solve(ctx, timeLimit, seed); err != nil {
		return vrp.Solution{}, "", err
	}
	if b.Status() == solver.StatusInfeasible {
		return vrp.Solution{}, "infeasible", nil
	}
	return b.Solution(), "solved", nil
}

func (s *Server) runGenetic(ctx context.Context, jobID string, in *vrp.Instance, seed int64) vrp.Solution {
	cfg := genetic.Config{
		PopulationSize: s.Cfg.PopulationSize,
		Generations:    s.Cfg.Generations,
		TournamentSize: s.Cfg.TournamentSize,
		Seed:           seed,
		Progress: func(gen int, best int64) {
			p := model.Progress{
				JobID:       jobID,
				Method:      "heuristic",
				Generation:  gen,
				BestFitness: float64(best) / float64(in.TimeScaler),
				TS:          time.Now().UTC().Format(time.RFC3339),
			}
			s.Progress.Upsert(p)
			s.Broker.Publish(jobID, SSEEvent{Type: "solve.progress", Data: map[string]any{
				"jobId":       p.JobID,
				"generation":  p.Generation,
				"bestFitness": p.BestFitness,
				"ts":          p.TS,
			}})
		},
	}
	routes, best := genetic.Run(ctx, in, cfg)
	return vrp.Summarize(routes, best, in)
}
