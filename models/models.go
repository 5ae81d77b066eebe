package models

import (
	"time"
)

// DisplayStatus is the liveness state of a display.
type DisplayStatus string

const (
	DisplayOnline  DisplayStatus = "online"
	DisplayOffline DisplayStatus = "offline"
)

// Display represents a signage client (browser/kiosk) tracked by the server.
type Display struct {
	ID               string        `bson:"_id" json:"id"`
	Name             string        `bson:"name" json:"name"`
	Location         string        `bson:"location,omitempty" json:"location,omitempty"`
	Tags             []string      `bson:"tags,omitempty" json:"tags,omitempty"`
	Status           DisplayStatus `bson:"status" json:"status"`
	LastHeartbeat    time.Time     `bson:"last_heartbeat" json:"last_heartbeat"`
	OfflineSince     *time.Time    `bson:"offline_since,omitempty" json:"offline_since,omitempty"`
	RegisteredAt     time.Time     `bson:"registered_at" json:"registered_at"`
	IPAddress        string        `bson:"ip_address,omitempty" json:"ip_address,omitempty"`
	ScreenResolution string        `bson:"screen_resolution,omitempty" json:"screen_resolution,omitempty"`
	CurrentPage      string        `bson:"current_page,omitempty" json:"current_page,omitempty"`
}

// Settings is the slideshow/theme configuration displays render from.
// The sync core treats it as an opaque JSON document; the editors own its shape.
type Settings map[string]interface{}

// Alert is an active emergency alert pushed to every display.
type Alert struct {
	Message  string    `bson:"message" json:"message"`
	Level    string    `bson:"level" json:"level"`
	RaisedAt time.Time `bson:"raised_at" json:"raised_at"`
}

// AuditEntry is one append-only record of a privileged action.
type AuditEntry struct {
	Actor     string    `bson:"actor" json:"actor"`
	Action    string    `bson:"action" json:"action"`
	Detail    string    `bson:"detail,omitempty" json:"detail,omitempty"`
	IPAddress string    `bson:"ip_address,omitempty" json:"ip_address,omitempty"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}
