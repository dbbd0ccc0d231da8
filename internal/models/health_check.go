package models

import "time"

// Backend states reported in HealthCheck.Services.
const (
	StatusHealthy       = "healthy"
	StatusUnhealthy     = "unhealthy"
	StatusNotConfigured = "not configured"
)

// HealthCheck is the body of the proxy's health endpoint.
type HealthCheck struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// NewHealthCheck derives the overall status from per-backend states. A
// backend that is not configured never makes the proxy unhealthy.
func NewHealthCheck(services map[string]string) HealthCheck {
	status := StatusHealthy
	for _, s := range services {
		if s != StatusHealthy && s != StatusNotConfigured {
			status = StatusUnhealthy
			break
		}
	}

	return HealthCheck{
		Status:    status,
		Timestamp: time.Now(),
		Services:  services,
	}
}

func (h HealthCheck) Healthy() bool {
	return h.Status == StatusHealthy
}
