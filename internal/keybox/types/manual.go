package types

// ManualTriggerRequest is a staff-issued open/close for a room, placed
// through the administrative surface rather than a tag scan.
type ManualTriggerRequest struct {
	Room     string `json:"room"`
	Action   string `json:"action"` // "open" | "close"
	IssuedBy string `json:"issued_by,omitempty"`
	Note     string `json:"note,omitempty"`
}

type ManualTriggerResponse struct {
	OK         bool   `json:"ok"`
	CommandID  string `json:"command_id"`
	ServerTime string `json:"server_time"`
}

// ManualPollResponse is returned to a device polling for pending manual
// commands. HasCommand is false outside the freshness window.
type ManualPollResponse struct {
	OK         bool   `json:"ok"`
	HasCommand bool   `json:"has_command"`
	Action     string `json:"action,omitempty"`
	IssuedBy   string `json:"issued_by,omitempty"`
	IssuedAt   string `json:"issued_at,omitempty"`
	ServerTime string `json:"server_time"`
}

// HealthResponse reports process liveness plus the durable-log fault flag.
type HealthResponse struct {
	OK         bool   `json:"ok"`
	JournalOK  bool   `json:"journal_ok"`
	ServerTime string `json:"server_time"`
}
