package types

// BundleSlot is a TimeSlot rendered for the device cache: day names, HH:MM
// strings, canonical tag UIDs.
type BundleSlot struct {
	ID         string   `json:"id"`
	Days       []string `json:"days"`
	Start      string   `json:"start"`
	End        string   `json:"end"`
	Subject    string   `json:"subject,omitempty"`
	Instructor string   `json:"instructor,omitempty"`
	Tags       []string `json:"tags"`
}

// ScheduleBundle is the full schedule download for one room.
type ScheduleBundle struct {
	OK           bool         `json:"ok"`
	Room         string       `json:"room"`
	AcademicYear string       `json:"academic_year,omitempty"`
	Semester     string       `json:"semester,omitempty"`
	Version      int64        `json:"version"`
	Slots        []BundleSlot `json:"slots"`
	ServerTime   string       `json:"server_time"`
}

// UpdateCheckResponse answers the device's cheap "did anything change since
// version N" poll.
type UpdateCheckResponse struct {
	OK          bool   `json:"ok"`
	NeedsUpdate bool   `json:"needs_update"`
	Version     int64  `json:"version"`
	ServerTime  string `json:"server_time"`
}
