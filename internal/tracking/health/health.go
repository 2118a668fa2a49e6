// Package health provides tracker health monitoring and status reporting.
package health

import "time"

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// ChainHealth contains the last cycle figures for a specific chain.
type ChainHealth struct {
	Chain   string       `json:"chain"`
	Status  SystemStatus `json:"status"`
	Wallets int          `json:"wallets"`
	Scored  int          `json:"scored"`
	Errors  int          `json:"errors"`
	Alerts  int          `json:"alerts"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus    SystemStatus            `json:"system_status"`
	CyclesCompleted int                     `json:"cycles_completed"`
	LastCycleAt     *time.Time              `json:"last_cycle_at,omitempty"`
	Chains          map[string]ChainHealth  `json:"chains"`
	Components      map[string]SystemStatus `json:"components,omitempty"`
}
