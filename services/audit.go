package services

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"signage-server/models"
)

// AuditLogger appends privileged-action records to an append-only
// collection. Insert failures are logged and never fail the request
// that triggered them.
type AuditLogger struct {
	collection *mongo.Collection
}

func NewAuditLogger(db *mongo.Database) *AuditLogger {
	return &AuditLogger{collection: db.Collection("audit_log")}
}

// Record writes one audit entry in the background. A logger without a
// backing collection drops entries, which keeps audit optional in
// stripped-down deployments.
func (a *AuditLogger) Record(actor, action, detail, ip string) {
	if a == nil || a.collection == nil {
		return
	}
	entry := models.AuditEntry{
		Actor:     actor,
		Action:    action,
		Detail:    detail,
		IPAddress: ip,
		Timestamp: time.Now(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := a.collection.InsertOne(ctx, entry); err != nil {
			slog.Error("Failed to write audit entry", "action", action, "error", err)
		}
	}()
}
