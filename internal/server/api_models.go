package server

import (
	"github.com/raysh454/webscan/internal/model"
	"github.com/raysh454/webscan/internal/queue"
)

// ScanRequest is the body of POST /scan and POST /jobs/scan.
type ScanRequest struct {
	URL string `json:"url" example:"https://example.com"`
}

// ScanResponse is the uniform envelope of POST /scan. Data is set on
// success, Error on failure.
type ScanResponse struct {
	Status    string            `json:"status" example:"completed"`
	Data      *model.ScanResult `json:"data,omitempty"`
	Error     string            `json:"error,omitempty" example:"Invalid URL"`
	Timestamp int64             `json:"timestamp" example:"1714564800000"`
}

// HealthResponse reports queue occupancy and cache reachability.
type HealthResponse struct {
	Status string      `json:"status" example:"ok"`
	Queue  queue.Stats `json:"queue"`
	Cache  string      `json:"cache" example:"ok"`
}

// ErrorResponse is a uniform error payload returned by the job endpoints.
type ErrorResponse struct {
	Error string `json:"error" example:"job not found"`
}
