// Package health provides system health monitoring and the operator HTTP surface.
package health

// SystemStatus represents the overall health state of the pipeline.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// Report contains the pipeline health snapshot served at /health.
type Report struct {
	Status        SystemStatus `json:"status"`
	Processed     int64        `json:"processed"`
	ReviewBacklog int          `json:"review_backlog"`
	Escalations   int          `json:"escalations"`
	RetrySuccess  float64      `json:"retry_success_rate"`
}
