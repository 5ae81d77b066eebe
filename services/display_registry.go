package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"signage-server/models"
)

// HeartbeatMeta carries the optional fields a heartbeat or stream
// connection may report. Empty fields leave the stored value untouched.
type HeartbeatMeta struct {
	Name             string
	Location         string
	IPAddress        string
	ScreenResolution string
	CurrentPage      string
}

// DisplayEdit is an explicit admin edit of display metadata. Nil fields
// are left unchanged.
type DisplayEdit struct {
	Name     *string
	Location *string
	Tags     *[]string
}

// DisplayRegistry is the authoritative map of known displays and their
// liveness. Status converges on `online iff a heartbeat arrived within
// the timeout`, enforced by the periodic reaper, so brief staleness
// between reap cycles is expected.
//
// Hooks fire outside the registry lock: onRosterChange once per batch
// of status/membership changes, onDirty on any mutation worth
// persisting.
type DisplayRegistry struct {
	timeout time.Duration

	mu       sync.RWMutex
	displays map[string]*models.Display

	onRosterChange func()
	onDirty        func()
}

// NewDisplayRegistry creates an empty registry with the given heartbeat
// timeout.
func NewDisplayRegistry(timeout time.Duration) *DisplayRegistry {
	return &DisplayRegistry{
		timeout:  timeout,
		displays: make(map[string]*models.Display),
	}
}

// SetHooks installs the roster-changed and dirty callbacks. Must be
// called before the registry receives traffic.
func (r *DisplayRegistry) SetHooks(onRosterChange, onDirty func()) {
	r.onRosterChange = onRosterChange
	r.onDirty = onDirty
}

func (r *DisplayRegistry) fireRosterChange() {
	if r.onRosterChange != nil {
		r.onRosterChange()
	}
}

func (r *DisplayRegistry) fireDirty() {
	if r.onDirty != nil {
		r.onDirty()
	}
}

// Seed loads persisted displays on startup. Stored statuses are kept
// as-is; stale "online" records converge on the first reap cycle.
func (r *DisplayRegistry) Seed(displays []models.Display) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range displays {
		d := displays[i]
		if d.ID == "" {
			continue
		}
		r.displays[d.ID] = &d
	}
}

// RegisterOrUpdate creates or refreshes a display record. Called by new
// stream connections and by heartbeat pings; idempotent, so repeated
// calls with the same id update fields rather than duplicating records.
// An empty id gets a server-generated one. Returns the updated record
// and whether it was newly created.
func (r *DisplayRegistry) RegisterOrUpdate(id string, meta HeartbeatMeta) (models.Display, bool) {
	now := time.Now()

	r.mu.Lock()

	if id == "" {
		id = uuid.New().String()
	}

	d, exists := r.displays[id]
	created := false
	rosterChanged := false

	if !exists {
		name := meta.Name
		if name == "" {
			name = fmt.Sprintf("Display %s", shortID(id))
		}
		d = &models.Display{
			ID:            id,
			Name:          name,
			Location:      meta.Location,
			Status:        models.DisplayOnline,
			LastHeartbeat: now,
			RegisteredAt:  now,
		}
		r.displays[id] = d
		created = true
		rosterChanged = true
	} else {
		d.LastHeartbeat = now
		if d.Status == models.DisplayOffline {
			d.Status = models.DisplayOnline
			d.OfflineSince = nil
			rosterChanged = true
		}
		if meta.Name != "" {
			d.Name = meta.Name
		}
		if meta.Location != "" {
			d.Location = meta.Location
		}
	}

	if meta.IPAddress != "" {
		d.IPAddress = meta.IPAddress
	}
	if meta.ScreenResolution != "" {
		d.ScreenResolution = meta.ScreenResolution
	}
	if meta.CurrentPage != "" {
		d.CurrentPage = meta.CurrentPage
	}

	result := *d
	r.mu.Unlock()

	if created {
		slog.Info("Display registered", "displayID", id, "name", result.Name)
	}
	if rosterChanged {
		r.fireRosterChange()
	}
	r.fireDirty()

	return result, created
}

// Get returns a copy of one display record.
func (r *DisplayRegistry) Get(id string) (models.Display, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.displays[id]
	if !ok {
		return models.Display{}, false
	}
	return *d, true
}

// UpdateMeta applies an explicit admin edit. Returns false when the
// display is unknown.
func (r *DisplayRegistry) UpdateMeta(id string, edit DisplayEdit) (models.Display, bool) {
	r.mu.Lock()

	d, ok := r.displays[id]
	if !ok {
		r.mu.Unlock()
		return models.Display{}, false
	}

	if edit.Name != nil {
		d.Name = *edit.Name
	}
	if edit.Location != nil {
		d.Location = *edit.Location
	}
	if edit.Tags != nil {
		d.Tags = append([]string(nil), (*edit.Tags)...)
	}

	result := *d
	r.mu.Unlock()

	r.fireRosterChange()
	r.fireDirty()
	return result, true
}

// MarkOffline flips a display offline immediately, used when its last
// stream connection closes. Returns false when the display is unknown
// or already offline.
func (r *DisplayRegistry) MarkOffline(id string) bool {
	now := time.Now()

	r.mu.Lock()
	d, ok := r.displays[id]
	if !ok || d.Status == models.DisplayOffline {
		r.mu.Unlock()
		return false
	}
	d.Status = models.DisplayOffline
	d.OfflineSince = &now
	r.mu.Unlock()

	slog.Info("Display offline", "displayID", id, "reason", "stream closed")
	r.fireRosterChange()
	r.fireDirty()
	return true
}

// Delete removes a display. Displays are never deleted automatically,
// only through this explicit admin path. A heartbeat racing a delete
// re-registers the display as a fresh record.
func (r *DisplayRegistry) Delete(id string) bool {
	r.mu.Lock()
	_, ok := r.displays[id]
	delete(r.displays, id)
	r.mu.Unlock()

	if !ok {
		return false
	}

	slog.Info("Display deleted", "displayID", id)
	r.fireRosterChange()
	r.fireDirty()
	return true
}

// DeleteOffline removes every offline display in one step, atomic with
// respect to concurrent heartbeats.
func (r *DisplayRegistry) DeleteOffline() int {
	r.mu.Lock()
	removed := 0
	for id, d := range r.displays {
		if d != nil && d.Status == models.DisplayOffline {
			delete(r.displays, id)
			removed++
		}
	}
	r.mu.Unlock()

	if removed > 0 {
		slog.Info("Offline displays deleted", "count", removed)
		r.fireRosterChange()
		r.fireDirty()
	}
	return removed
}

// Reap transitions every display whose last heartbeat exceeds the
// timeout to offline. One roster broadcast per reap cycle regardless of
// how many displays flipped; each record is evaluated independently so
// a malformed entry cannot halt the sweep.
func (r *DisplayRegistry) Reap() int {
	now := time.Now()

	r.mu.Lock()
	transitioned := 0
	for id, d := range r.displays {
		if d == nil {
			slog.Error("Skipping malformed display record", "displayID", id)
			continue
		}
		if d.Status != models.DisplayOnline {
			continue
		}
		if now.Sub(d.LastHeartbeat) > r.timeout {
			d.Status = models.DisplayOffline
			offlineAt := now
			d.OfflineSince = &offlineAt
			transitioned++
			slog.Info("Display offline", "displayID", id, "reason", "heartbeat timeout",
				"lastHeartbeat", d.LastHeartbeat)
		}
	}
	r.mu.Unlock()

	if transitioned > 0 {
		r.fireRosterChange()
		r.fireDirty()
	}
	return transitioned
}

// StartReaper runs Reap on a fixed interval until ctx is cancelled.
func (r *DisplayRegistry) StartReaper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Info("Display reaper stopped")
				return
			case <-ticker.C:
				r.Reap()
			}
		}
	}()
}

// Summarize returns a stable snapshot for admin tooling: online
// displays first, then alphabetical by name, id as the final tiebreaker.
func (r *DisplayRegistry) Summarize() []models.Display {
	r.mu.RLock()
	out := make([]models.Display, 0, len(r.displays))
	for _, d := range r.displays {
		if d == nil {
			continue
		}
		out = append(out, *d)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Status != out[j].Status {
			return out[i].Status == models.DisplayOnline
		}
		ni, nj := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if ni != nj {
			return ni < nj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Counts returns the number of online and offline displays.
func (r *DisplayRegistry) Counts() (online, offline int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, d := range r.displays {
		if d == nil {
			continue
		}
		if d.Status == models.DisplayOnline {
			online++
		} else {
			offline++
		}
	}
	return online, offline
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
