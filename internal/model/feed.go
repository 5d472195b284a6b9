package model

// BrainSignal is the latest computed-signal event from the upstream
// decision engine ("brain" channel).
type BrainSignal struct {
	Action       string   `json:"action"` // "BUY" | "SELL" | "HOLD"
	Confidence   float64  `json:"confidence"`
	Reason       string   `json:"reason"`
	RiskStatus   string   `json:"risk_status"`
	ActiveAgents []string `json:"active_agents"`
}

// SystemTelemetry is the latest operational snapshot from the "system"
// channel. Fields beyond these are ignored by the client.
type SystemTelemetry struct {
	Status    string  `json:"status"`
	CPUUsage  float64 `json:"cpu_usage"`
	RAMUsage  float64 `json:"ram_usage"`
	RiskLevel float64 `json:"risk_level"`
	Uptime    float64 `json:"uptime"`
}

// Degraded reports whether the telemetry status warrants an operator log
// entry. The upstream emits "CRITICAL" under memory pressure and "HALTED"
// when the kill switch is on.
func (t SystemTelemetry) Degraded() bool {
	return t.Status == "CRITICAL" || t.Status == "HALTED"
}

// Alert is a human-readable operator alert from the "alert" channel.
type Alert struct {
	Message string `json:"message"`
}
