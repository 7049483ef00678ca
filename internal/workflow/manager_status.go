package workflow

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running       bool   `json:"running"`
	Active        int    `json:"active"`
	Waiting       int    `json:"waiting"`
	MaxConcurrent int    `json:"max_concurrent"`
	LastError     string `json:"last_error,omitempty"`
	LastJobID     string `json:"last_job_id,omitempty"`
}

// Status returns the latest workflow information.
func (m *Manager) Status() StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{
		Running:       m.running,
		MaxConcurrent: m.settings.maxConcurrent,
		LastJobID:     m.lastJob,
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	m.mu.RUnlock()
	summary.Active = int(m.active.Load())
	summary.Waiting = int(m.waiting.Load())
	return summary
}
