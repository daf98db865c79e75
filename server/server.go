// Package server exposes HTTP handlers, ready for use with net/http,
// around an apns.Client.
//
// API has 2 endpoints:
//
// * for sending raw push notifications (APN gateway service).
//
// * for listing device tokens removed since the last check (sourced
// from both INVALID_TOKEN error responses and the feedback service).
//
// Raw push notification endpoint
//
// You can set the URI for this endpoint via
//  --notification-endpoint="/my-send-push-notification-endpoint"
//
// It accepts POST requests with JSON body:
//  {
//     "deviceToken": "<base64 device token>",
//     "payload": {
//         "alert": "Hi there!",
//         "sound": "default",
//         "extras": {"weather": "It will be sunny today"}
//     }
//  }
//
// Possible responses:
//
// 	202 Accepted   - notification was delivered without error
// 	405 Method Not Allowed - request was not a POST
// 	409 Conflict   - request body was malformed, or APS rejected the notification
// 	503 Service Unavailable - client is not connected to the gateway
//
// Removed device tokens endpoint
//
// You can set the URI for this endpoint via
//  --removed-devices-endpoint="/my-removed-devices-endpoint"
//
// It accepts GET requests and returns every identity_removed event
// observed since the previous call:
//  {
//    "devices": [
//      {"timestamp": "2015-10-21T10:32:31Z", "deviceToken": "<base64>"}
//    ]
//  }
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shadimsaleh/push-glib/apns"
	"github.com/spf13/pflag"
)

var (
	// Address is the IP address the HTTP server should bind to
	Address = net.ParseIP("0.0.0.0")
	// Port is the port the HTTP server listens on
	Port uint16 = 9090
	// RawNotificationEndpoint is the URI of the notification endpoint
	RawNotificationEndpoint = "/notification"
	// RemovedDevicesEndpoint is the URI of the removed-devices endpoint
	RemovedDevicesEndpoint = "/removed-devices"
	// DeliverTimeout bounds how long a notification request waits for
	// the delivery outcome before responding 503.
	DeliverTimeout = 5 * time.Second

	notificationCounter uint64
	removedCounter       uint64
)

func setupHTTPCommandLineFlags(fs *pflag.FlagSet) {
	fs.IPVar(&Address, "address", Address, "IP address the HTTP server should bind to.")
	fs.Uint16Var(&Port, "port", Port, "Port on which the HTTP server should listen.")
	fs.StringVar(&RawNotificationEndpoint, "notification-endpoint", RawNotificationEndpoint, "URI of the raw push notification endpoint.")
	fs.StringVar(&RemovedDevicesEndpoint, "removed-devices-endpoint", RemovedDevicesEndpoint, "URI of the removed device tokens endpoint.")
}

// SetupCommandLineFlags sets all necessary command line flags and their defaults
func SetupCommandLineFlags(fs *pflag.FlagSet) {
	setupHTTPCommandLineFlags(fs)
}

type notificationRequest struct {
	DeviceToken string                 `json:"deviceToken"`
	Payload     notificationPayload    `json:"payload"`
}

type notificationPayload struct {
	Alert  string                 `json:"alert"`
	Badge  uint32                 `json:"badge"`
	Sound  string                 `json:"sound"`
	Extras map[string]interface{} `json:"extras"`
}

func (p notificationPayload) toPayload() (*apns.Payload, error) {
	payload := apns.NewPayload()
	if p.Alert != "" {
		payload.SetAlert(p.Alert)
	}
	if p.Sound != "" {
		payload.SetSound(p.Sound)
	}
	payload.SetBadge(p.Badge)
	for k, v := range p.Extras {
		if err := payload.AddExtra(k, v); err != nil {
			return nil, err
		}
	}
	return payload, nil
}

// RemovedDeviceRegistry accumulates identity_removed events drained
// from a Client's event stream so the HTTP handler has something
// synchronous to answer GET requests with.
type RemovedDeviceRegistry struct {
	mu      sync.Mutex
	entries []removedDeviceEntry
}

type removedDeviceEntry struct {
	Timestamp   time.Time `json:"timestamp"`
	DeviceToken string    `json:"deviceToken"`
}

// NewRemovedDeviceRegistry starts draining c's event stream in the
// background and returns the registry HTTP handlers can poll.
func NewRemovedDeviceRegistry(c *apns.Client) *RemovedDeviceRegistry {
	r := &RemovedDeviceRegistry{}
	go func() {
		for ev := range c.Events() {
			if ev.Type != apns.EventIdentityRemoved {
				continue
			}
			r.mu.Lock()
			r.entries = append(r.entries, removedDeviceEntry{
				Timestamp:   ev.Timestamp,
				DeviceToken: ev.Identity.DeviceToken(),
			})
			r.mu.Unlock()
		}
	}()
	return r
}

// drain returns and clears everything accumulated so far.
func (r *RemovedDeviceRegistry) drain() []removedDeviceEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.entries
	r.entries = nil
	return out
}

// NewRawNotificationHTTPHandlerFunc returns a net/http handler that
// decodes a notification request and delivers it via c.
func NewRawNotificationHTTPHandlerFunc(c *apns.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		startTime := time.Now()
		n := atomic.AddUint64(&notificationCounter, 1)

		w.Header().Set("Content-Type", "application/json; charset=utf8")

		if req.Method != http.MethodPost {
			finishResponse("Send push notification", n, w, http.StatusMethodNotAllowed, nil, startTime)
			return
		}

		var reqBody notificationRequest
		if err := json.NewDecoder(req.Body).Decode(&reqBody); err != nil {
			if err == io.EOF {
				err = errors.New("notification data is missing")
			}
			logger.Errorf("Error decoding notification request: %s", err)
			finishResponse("Send push notification", n, w, http.StatusConflict, errorJSON(err), startTime)
			return
		}

		payload, err := reqBody.Payload.toPayload()
		if err != nil {
			finishResponse("Send push notification", n, w, http.StatusConflict, errorJSON(err), startTime)
			return
		}

		ctx, cancel := context.WithTimeout(req.Context(), DeliverTimeout)
		defer cancel()

		identity := apns.NewIdentity(reqBody.DeviceToken)
		handle, err := c.Deliver(ctx, identity, payload)
		if err != nil {
			logger.Warningf("Delivery #%d rejected before send: %s", n, err)
			status := http.StatusServiceUnavailable
			if errors.Is(err, apns.ErrInvalidTokenLen) {
				status = http.StatusConflict
			}
			finishResponse("Send push notification", n, w, status, errorJSON(err), startTime)
			return
		}

		if err := handle.Wait(ctx); err != nil {
			logger.Debugf("Delivery #%d outcome: %s", n, err)
			status := http.StatusServiceUnavailable
			var apsErr *apns.APSError
			if errors.As(err, &apsErr) {
				status = http.StatusConflict
			}
			finishResponse("Send push notification", n, w, status, errorJSON(err), startTime)
			return
		}

		responseData, _ := json.Marshal(&reqBody)
		finishResponse("Send push notification", n, w, http.StatusAccepted, responseData, startTime)
	}
}

// NewRemovedDevicesHTTPHandlerFunc returns a net/http handler that
// reports every identity_removed event r has accumulated so far.
func NewRemovedDevicesHTTPHandlerFunc(r *RemovedDeviceRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		startTime := time.Now()
		n := atomic.AddUint64(&removedCounter, 1)

		w.Header().Set("Content-Type", "application/json; charset=utf8")

		if req.Method != http.MethodGet {
			finishResponse("List removed devices", n, w, http.StatusMethodNotAllowed, nil, startTime)
			return
		}

		entries := r.drain()
		if entries == nil {
			entries = []removedDeviceEntry{}
		}
		responseData, _ := json.Marshal(&struct {
			Devices []removedDeviceEntry `json:"devices"`
		}{Devices: entries})

		finishResponse("List removed devices", n, w, http.StatusOK, responseData, startTime)
	}
}

func errorJSON(err error) []byte {
	data, _ := json.Marshal(&struct {
		Error string `json:"error"`
	}{Error: err.Error()})
	return data
}

func finishResponse(requestType string, counter uint64, w http.ResponseWriter, responseStatus int, responseData []byte, startTime time.Time) {
	w.WriteHeader(responseStatus)
	if len(responseData) > 0 {
		w.Write(responseData)
	}
	logger.Infof("%s request #%d finished with %s (%d) in %s", requestType, counter, http.StatusText(responseStatus), responseStatus, time.Since(startTime))
}
