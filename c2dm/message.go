// Package c2dm is a minimal client for Google's old Cloud to Device
// Messaging HTTP endpoint, the Android-side counterpart to the APS
// gateway this module otherwise talks to. C2DM was retired by Google
// in favor of GCM/FCM; it is kept here only as the second, HTTP-POST
// based push backend the spec names as out of scope for this module -
// a caller bridging both platforms can still use this package directly.
package c2dm

import (
	"net/url"
)

const sendEndpoint = "https://android.apis.google.com/c2dm/send"

// Message is one C2DM push: a target registration id, optional
// ordering/power hints, and arbitrary data.* parameters.
type Message struct {
	RegistrationID string
	CollapseKey    string
	DelayWhileIdle bool

	params url.Values
}

// NewMessage returns an empty Message for the given registration id.
func NewMessage(registrationID string) *Message {
	return &Message{RegistrationID: registrationID, params: url.Values{}}
}

// AddParam adds a key/value pair delivered to the device as
// "data.<key>", mirroring the original implementation's header
// convention for the same concern.
func (m *Message) AddParam(key, value string) {
	m.params.Set("data."+key, value)
}

// formValues renders the message as the application/x-www-form-urlencoded
// body C2DM expects.
func (m *Message) formValues() url.Values {
	v := url.Values{}
	for k, vals := range m.params {
		for _, val := range vals {
			v.Add(k, val)
		}
	}
	v.Set("registration_id", m.RegistrationID)
	if m.CollapseKey != "" {
		v.Set("collapse_key", m.CollapseKey)
	}
	if m.DelayWhileIdle {
		v.Set("delay_while_idle", "1")
	}
	return v
}
