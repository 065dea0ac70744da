package api

import (
	"fmt"

	"vrpsolve/internal/model"
)

func validateSolveRequest(req *model.SolveRequest, maxTimeLimitSeconds int) error {
	if req.DatasetID == "" {
		return fmt.Errorf("datasetId is required")
	}
	if req.Method != "" && req.Method != "exact" && req.Method != "heuristic" {
		return fmt.Errorf("invalid method: %s (allowed: exact, heuristic)", req.Method)
	}
	if req.TimePrecisionScaler < 0 {
		return fmt.Errorf("timePrecisionScaler must be >= 0")
	}
	if req.TimeLimitSeconds < 0 {
		return fmt.Errorf("timeLimitSeconds must be >= 0")
	}
	if maxTimeLimitSeconds > 0 && req.TimeLimitSeconds > maxTimeLimitSeconds {
		return fmt.Errorf("timeLimitSeconds must be <= %d", maxTimeLimitSeconds)
	}
	if req.Seed < 0 {
		return fmt.Errorf("seed must be >= 0")
	}
	return nil
}
