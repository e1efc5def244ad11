package model

import "time"

// HostStats represents a point-in-time resource snapshot of the host running remediations
type HostStats struct {
	Hostname      string    `json:"hostname"`
	CPUUsage      float64   `json:"cpu_usage"`
	MemoryUsage   float64   `json:"memory_usage"`
	MemoryTotal   uint64    `json:"memory_total"`
	Load1         float64   `json:"load1"`
	UptimeSeconds uint64    `json:"uptime_seconds"`
	CollectedAt   time.Time `json:"collected_at"`
}
