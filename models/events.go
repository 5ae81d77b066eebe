package models

// Event types pushed over display stream connections.
const (
	EventInitial         = "initial"
	EventSettingsUpdate  = "settings_update"
	EventDisplaysUpdate  = "displays_update"
	EventCommand         = "command"
	EventEmergencyAlert  = "emergency_alert"
	EventEmergencyCancel = "emergency_cancel"
	EventDismissalUpdate = "dismissal_update"
	EventDismissalClear  = "dismissal_clear"
	EventServerShutdown  = "server_shutdown"
)

// Event is the envelope pushed to every subscribed display connection.
type Event struct {
	Type      string      `json:"type"`
	Timestamp int64       `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// InitialEvent is the snapshot sent once when a stream connection opens.
type InitialEvent struct {
	Type      string   `json:"type"`
	DisplayID string   `json:"displayId"`
	Settings  Settings `json:"settings"`
	Alert     *Alert   `json:"alert,omitempty"`
	Timestamp int64    `json:"timestamp"`
}
