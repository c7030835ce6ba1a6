package surface

import (
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Handle references a marker owned by a Layer.
type Handle uint64

// Marker is the rendered state of one map marker.
type Marker struct {
	Handle    Handle  `json:"handle"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Label     string  `json:"label,omitempty"`
	Icon      Icon    `json:"icon"`
	Visible   bool    `json:"visible"`
}

type CommandType string

const (
	CommandCreate CommandType = "create"
	CommandMove   CommandType = "move"
	CommandLabel  CommandType = "label"
	CommandShow   CommandType = "show"
)

// Command describes one surface mutation. Commands are upserts keyed by
// marker handle, so replaying one is harmless.
type Command struct {
	Type   CommandType `json:"type"`
	Marker Marker      `json:"marker"`
}

// Broadcaster receives every command applied to a Layer.
type Broadcaster interface {
	Broadcast(Command)
}

// Layer is an in-memory marker layer. It is the map surface the tracker talks
// to; browsers mirror it through the Hub.
type Layer struct {
	mu          sync.RWMutex
	next        Handle
	markers     map[Handle]*Marker
	broadcaster Broadcaster
}

func NewLayer() *Layer {
	return &Layer{markers: make(map[Handle]*Marker)}
}

// SetBroadcaster attaches the command sink. Commands are emitted under the
// layer lock so sinks observe them in application order.
func (l *Layer) SetBroadcaster(b Broadcaster) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.broadcaster = b
}

func (l *Layer) CreateMarkerAt(lat, lon float64, icon Icon) Handle {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.next++
	m := &Marker{Handle: l.next, Latitude: lat, Longitude: lon, Icon: icon}
	l.markers[m.Handle] = m
	l.emit(CommandCreate, m)
	return m.Handle
}

func (l *Layer) SetMarkerPosition(h Handle, lat, lon float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.lookup(h)
	if !ok {
		return
	}
	m.Latitude, m.Longitude = lat, lon
	l.emit(CommandMove, m)
}

func (l *Layer) BindLabel(h Handle, text string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.lookup(h)
	if !ok {
		return
	}
	m.Label = text
	l.emit(CommandLabel, m)
}

func (l *Layer) AddMarkerToSurface(h Handle) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.lookup(h)
	if !ok {
		return
	}
	m.Visible = true
	l.emit(CommandShow, m)
}

// Marker returns a copy of the marker state.
func (l *Layer) Marker(h Handle) (Marker, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	m, ok := l.markers[h]
	if !ok {
		return Marker{}, false
	}
	return *m, true
}

// Markers returns a copy of all markers ordered by handle.
func (l *Layer) Markers() []Marker {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Marker, 0, len(l.markers))
	for _, m := range l.markers {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out
}

func (l *Layer) lookup(h Handle) (*Marker, bool) {
	m, ok := l.markers[h]
	if !ok {
		log.WithField("handle", h).Warn("Неизвестный маркер")
	}
	return m, ok
}

func (l *Layer) emit(t CommandType, m *Marker) {
	if l.broadcaster != nil {
		l.broadcaster.Broadcast(Command{Type: t, Marker: *m})
	}
}
