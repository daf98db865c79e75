package c2dm

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrQuotaExceeded and ErrDeviceQuotaExceeded mirror the two
// rate-limit errors C2DM's send endpoint returns in its response body.
var (
	ErrQuotaExceeded       = errors.New("c2dm: QuotaExceeded")
	ErrDeviceQuotaExceeded = errors.New("c2dm: DeviceQuotaExceeded")
	ErrInvalidRegistration = errors.New("c2dm: InvalidRegistration")
	ErrNotRegistered       = errors.New("c2dm: NotRegistered")
)

var sendErrors = map[string]error{
	"QuotaExceeded":       ErrQuotaExceeded,
	"DeviceQuotaExceeded": ErrDeviceQuotaExceeded,
	"InvalidRegistration": ErrInvalidRegistration,
	"NotRegistered":       ErrNotRegistered,
}

// Client authenticates to C2DM with a bearer auth token obtained out of
// band (ClientLogin, in the original service) and sends Messages.
type Client struct {
	AuthToken string

	httpClient *http.Client
}

// NewClient returns a Client authenticating with authToken.
func NewClient(authToken string) *Client {
	return &Client{AuthToken: authToken, httpClient: &http.Client{}}
}

// Send POSTs m to the C2DM endpoint and maps the response body's
// "Error=<code>" line to one of this package's sentinel errors.
func (c *Client) Send(m *Message) error {
	req, err := http.NewRequest(http.MethodPost, sendEndpoint, strings.NewReader(m.formValues().Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "GoogleLogin auth="+c.AuthToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("c2dm: send failed with status %d: %s", resp.StatusCode, body)
	}

	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		code, ok := strings.CutPrefix(line, "Error=")
		if !ok {
			continue
		}
		if sentinel, known := sendErrors[code]; known {
			return sentinel
		}
		return fmt.Errorf("c2dm: send error: %s", code)
	}

	return nil
}
