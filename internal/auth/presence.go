package auth

import (
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/signage-core/internal/infrastructure/mqtt"
)

// DefaultHeartbeatWindow is how long an MQTT heartbeat keeps a display
// online without an open websocket.
const DefaultHeartbeatWindow = 90 * time.Second

// PresenceStatus is the connection state of one display.
type PresenceStatus struct {
	DisplayID   string     `json:"display_id"`
	Online      bool       `json:"online"`
	Connections int        `json:"connections"`
	LastSeen    *time.Time `json:"last_seen,omitempty"`
}

type presenceEntry struct {
	connections int
	lastSeen    time.Time
}

// Presence tracks connected displays in memory. It is safe for concurrent
// use.
type Presence struct {
	mu      sync.Mutex
	entries map[string]*presenceEntry
	window  time.Duration
	now     func() time.Time
}

// NewPresence returns an empty tracker. A non-positive window uses
// DefaultHeartbeatWindow.
func NewPresence(window time.Duration) *Presence {
	if window <= 0 {
		window = DefaultHeartbeatWindow
	}
	return &Presence{
		entries: make(map[string]*presenceEntry),
		window:  window,
		now:     time.Now,
	}
}

func (p *Presence) entry(displayID string) *presenceEntry {
	e, ok := p.entries[displayID]
	if !ok {
		e = &presenceEntry{}
		p.entries[displayID] = e
	}
	return e
}

// Connected records a new websocket connection for displayID.
func (p *Presence) Connected(displayID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e := p.entry(displayID)
	e.connections++
	e.lastSeen = p.now()
}

// Disconnected records a closed websocket connection for displayID.
func (p *Presence) Disconnected(displayID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[displayID]
	if !ok {
		return
	}
	if e.connections > 0 {
		e.connections--
	}
	e.lastSeen = p.now()
}

// Heartbeat records an out-of-band sign of life for displayID.
func (p *Presence) Heartbeat(displayID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entry(displayID).lastSeen = p.now()
}

// Forget drops everything known about displayID, e.g. after it is deleted.
func (p *Presence) Forget(displayID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.entries, displayID)
}

// Status reports whether displayID is online: it has an open connection or
// sent a heartbeat within the window. Unknown displays are offline.
func (p *Presence) Status(displayID string) PresenceStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	status := PresenceStatus{DisplayID: displayID}
	e, ok := p.entries[displayID]
	if !ok {
		return status
	}

	seen := e.lastSeen.UTC()
	status.LastSeen = &seen
	status.Connections = e.connections
	status.Online = e.connections > 0 || p.now().Sub(e.lastSeen) <= p.window
	return status
}

// HeartbeatHandler returns an MQTT handler for topics.AllDisplayPresence()
// that records a heartbeat for the display named in the topic.
func (p *Presence) HeartbeatHandler(topics mqtt.Topics) mqtt.MessageHandler {
	return func(topic string, _ []byte) error {
		id, ok := topics.DisplayIDFromPresence(topic)
		if !ok {
			return fmt.Errorf("unexpected presence topic %q", topic)
		}
		p.Heartbeat(id)
		return nil
	}
}
