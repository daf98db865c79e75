package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/shadimsaleh/push-glib/apns"
)

func TestRawNotificationHandlerRejectsNonPost(t *testing.T) {
	assert := assert.New(t)

	handler := NewRawNotificationHTTPHandlerFunc(nil)
	req := httptest.NewRequest(http.MethodGet, "/notification", nil)
	rec := httptest.NewRecorder()

	handler(rec, req)
	assert.Equal(http.StatusMethodNotAllowed, rec.Code)
}

func TestRemovedDevicesHandlerRejectsNonGet(t *testing.T) {
	assert := assert.New(t)

	registry := &RemovedDeviceRegistry{}
	handler := NewRemovedDevicesHTTPHandlerFunc(registry)
	req := httptest.NewRequest(http.MethodPost, "/removed-devices", nil)
	rec := httptest.NewRecorder()

	handler(rec, req)
	assert.Equal(http.StatusMethodNotAllowed, rec.Code)
}

func TestRemovedDevicesHandlerDrainsRegistry(t *testing.T) {
	assert := assert.New(t)

	registry := &RemovedDeviceRegistry{
		entries: []removedDeviceEntry{
			{Timestamp: time.Unix(100, 0), DeviceToken: "tok1"},
		},
	}
	handler := NewRemovedDevicesHTTPHandlerFunc(registry)

	req := httptest.NewRequest(http.MethodGet, "/removed-devices", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(http.StatusOK, rec.Code)
	assert.Contains(rec.Body.String(), "tok1")

	// second call should see the registry already drained
	req2 := httptest.NewRequest(http.MethodGet, "/removed-devices", nil)
	rec2 := httptest.NewRecorder()
	handler(rec2, req2)
	assert.Contains(rec2.Body.String(), `"devices":[]`)
}

func TestNotificationPayloadConversion(t *testing.T) {
	assert := assert.New(t)

	p := notificationPayload{Alert: "hi", Badge: 3}
	payload, err := p.toPayload()
	assert.NoError(err)

	rendered, err := payload.RenderJSON()
	assert.NoError(err)
	assert.Equal(`{"aps":{"alert":"hi","badge":3}}`, rendered)
}

func TestNotificationPayloadConversionRejectsReservedExtra(t *testing.T) {
	assert := assert.New(t)

	p := notificationPayload{Extras: map[string]interface{}{"aps": "boom"}}
	_, err := p.toPayload()
	assert.ErrorIs(err, apns.ErrReservedExtraKey)
}
