package types

// ScanRequest is what a keybox controller posts when a tag is presented.
// Tag carries the reader payload (hex UID + trailing XOR checksum byte);
// the server owns parsing and validation.
type ScanRequest struct {
	DeviceID    string `json:"device_id"`
	Tag         string `json:"tag"`
	Room        string `json:"room,omitempty"` // optional; the device registration wins
	DoorClosed  *bool  `json:"door_closed,omitempty"`
	RequestedAt string `json:"requested_at,omitempty"` // optional device timestamp
}

// ScanResponse carries the access decision back to the device. PulseMS is
// zero unless the relay should be energized; Suppressed marks a granted
// decision whose pulse was withheld by the lock cooldown.
type ScanResponse struct {
	OK         bool   `json:"ok"`
	Known      bool   `json:"known"`
	Granted    bool   `json:"granted"`
	Suppressed bool   `json:"suppressed,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Action     string `json:"action,omitempty"` // "borrow_key" | "return_key"
	PulseMS    uint32 `json:"pulse_ms,omitempty"`
	Instructor string `json:"instructor,omitempty"`
	Room       string `json:"room,omitempty"`
	ServerTime string `json:"server_time"`
}

// OfflineAttempt is one decision a device made locally while the backend
// was unreachable, uploaded once connectivity returns.
type OfflineAttempt struct {
	Tag       string `json:"tag"`
	Room      string `json:"room"`
	Granted   bool   `json:"granted"`
	Reason    string `json:"reason,omitempty"`
	Action    string `json:"action,omitempty"`
	Timestamp string `json:"timestamp"` // device-local RFC3339
}

type OfflineLogRequest struct {
	DeviceID string           `json:"device_id"`
	Attempts []OfflineAttempt `json:"attempts"`
}

type OfflineLogResponse struct {
	OK         bool   `json:"ok"`
	Accepted   int    `json:"accepted"`
	ServerTime string `json:"server_time"`
}
