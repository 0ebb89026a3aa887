// Package realtime holds the process-local registry of live push channels.
// The registry has process lifetime; reaching users attached to another
// instance needs an external pub/sub fan-out and is out of scope here.
package realtime

import (
	"encoding/json"
	"sync"

	"github.com/Aidana2201/Connection_Hub/internal/models"
	"github.com/Aidana2201/Connection_Hub/pkg/logger"
	"github.com/google/uuid"
)

const channelBuffer = 16

// Channel is one live push stream to a single client (one tab or device).
// A user may hold any number of channels at once.
type Channel struct {
	id     string
	userID string
	send   chan []byte
}

// Out exposes the serialized events queued for this channel.
func (c *Channel) Out() <-chan []byte {
	return c.send
}

// Dispatcher fans events out to every live channel of a user. Delivery is
// best-effort: slow or closed channels are dropped, and events pushed to a
// user with no channels are discarded.
type Dispatcher struct {
	mu       sync.Mutex
	channels map[string]map[string]*Channel
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		channels: make(map[string]map[string]*Channel),
	}
}

// Register opens a new channel for the user and returns it.
func (d *Dispatcher) Register(userID string) *Channel {
	ch := &Channel{
		id:     uuid.NewString(),
		userID: userID,
		send:   make(chan []byte, channelBuffer),
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.channels[userID] == nil {
		d.channels[userID] = make(map[string]*Channel)
	}
	d.channels[userID][ch.id] = ch

	logger.Log.Debugf("Registered push channel %s for user %s", ch.id, userID)
	return ch
}

// Unregister removes a channel and closes it. Safe to call for a channel the
// dispatcher already dropped.
func (d *Dispatcher) Unregister(ch *Channel) {
	if ch == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.removeLocked(ch)
}

func (d *Dispatcher) removeLocked(ch *Channel) {
	set, ok := d.channels[ch.userID]
	if !ok {
		return
	}
	if _, ok := set[ch.id]; !ok {
		return
	}
	delete(set, ch.id)
	if len(set) == 0 {
		delete(d.channels, ch.userID)
	}
	close(ch.send)
}

// Push serializes the event once and writes it to every live channel of the
// user. A channel whose buffer is full is treated as dead and removed.
func (d *Dispatcher) Push(userID string, event models.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to serialize push event")
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	set, ok := d.channels[userID]
	if !ok {
		return
	}

	for _, ch := range set {
		select {
		case ch.send <- payload:
		default:
			logger.Log.Warnf("Dropping dead push channel %s for user %s", ch.id, userID)
			d.removeLocked(ch)
		}
	}
}

// ChannelCount reports how many live channels a user currently has.
func (d *Dispatcher) ChannelCount(userID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.channels[userID])
}
