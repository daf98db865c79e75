package apns

import (
	"encoding/json"
	"sync"
)

// reservedExtraKey is the one key callers may not use for a custom field:
// it would collide with the "aps" system dictionary.
const reservedExtraKey = "aps"

// Payload is a notification's content: the standard alert/badge/sound
// triple plus arbitrary caller-supplied extras. The zero value is a
// valid, empty payload.
type Payload struct {
	mu sync.Mutex

	alert    *string
	badge    uint32
	sound    *string
	extras   map[string]interface{}
	rendered []byte
	dirty    bool
}

// NewPayload returns an empty payload ready for mutation.
func NewPayload() *Payload {
	return &Payload{dirty: true}
}

// SetAlert sets the alert text.
func (p *Payload) SetAlert(alert string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alert = &alert
	p.dirty = true
}

// SetBadge sets the badge count.
func (p *Payload) SetBadge(badge uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.badge = badge
	p.dirty = true
}

// SetSound sets the notification sound name.
func (p *Payload) SetSound(sound string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sound = &sound
	p.dirty = true
}

// AddExtra adds a custom top-level field to the payload. It rejects the
// reserved key "aps" with ErrReservedExtraKey and leaves the payload
// unchanged in that case.
func (p *Payload) AddExtra(key string, value interface{}) error {
	if key == reservedExtraKey {
		return ErrReservedExtraKey
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.extras == nil {
		p.extras = make(map[string]interface{})
	}
	p.extras[key] = value
	p.dirty = true
	return nil
}

// RenderJSON renders the canonical JSON form of the payload (§3/§4.A).
// It is idempotent: repeated calls with no mutation in between return
// byte-identical strings, because the rendering is cached and only
// recomputed after a Set*/AddExtra call.
func (p *Payload) RenderJSON() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.dirty && p.rendered != nil {
		return string(p.rendered), nil
	}

	aps := make(map[string]interface{}, 3)
	if p.alert != nil {
		aps["alert"] = *p.alert
	}
	if p.sound != nil {
		aps["sound"] = *p.sound
	}
	if p.badge != 0 || (p.alert == nil && p.sound == nil) {
		aps["badge"] = p.badge
	}

	full := make(map[string]interface{}, len(p.extras)+1)
	for k, v := range p.extras {
		full[k] = v
	}
	full[reservedExtraKey] = aps

	data, err := json.Marshal(full)
	if err != nil {
		return "", err
	}
	p.rendered = data
	p.dirty = false
	return string(data), nil
}
