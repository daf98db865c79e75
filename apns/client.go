package apns

import (
	"context"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
)

// EventType distinguishes the kinds of events a Client emits. Today
// there is exactly one: a device identity was invalidated, either by an
// INVALID_TOKEN error response on the gateway connection or by a
// feedback record.
type EventType int

const (
	EventIdentityRemoved EventType = iota
)

// Event is the single logical event surface the client exposes (§4.F).
type Event struct {
	Type      EventType
	Identity  *Identity
	Timestamp time.Time
}

const eventQueueSize = 1024

// defaultFeedbackIntervalMinutes is the poll period §4.F specifies when
// the caller doesn't override it, and minFeedbackIntervalMinutes is the
// floor below which the timer is clamped rather than armed with a
// too-short or zero/negative duration.
const (
	defaultFeedbackIntervalMinutes uint32 = 10
	minFeedbackIntervalMinutes     uint32 = 1
)

var (
	env                 string = "sandbox"
	certFile            string
	certKeyFile         string
	pkcs12File          string
	pkcs12Password      string
	feedbackIntervalMin uint32 = defaultFeedbackIntervalMinutes
	legacyEOFSemantics  bool
)

// SetupCommandLineFlags registers the pflag options this package
// consumes, in the same spirit as the teacher's SetupCommandLineFlags.
func SetupCommandLineFlags(fs *pflag.FlagSet) {
	fs.StringVar(&env, "env", env, `Apple environment: "production" or "sandbox".`)
	fs.StringVar(&certFile, "cert", certFile, "Absolute path to a PEM certificate file.")
	fs.StringVar(&certKeyFile, "cert-key", certKeyFile, "Absolute path to a PEM certificate private key file.")
	fs.StringVar(&pkcs12File, "cert-p12", pkcs12File, "Absolute path to a PKCS#12 certificate bundle (alternative to --cert/--cert-key).")
	fs.StringVar(&pkcs12Password, "cert-p12-password", pkcs12Password, "Password protecting the PKCS#12 bundle.")
	fs.Uint32Var(&feedbackIntervalMin, "feedback-interval", feedbackIntervalMin, "Minutes between feedback service polls (minimum 1).")
	fs.BoolVar(&legacyEOFSemantics, "legacy-eof-semantics", legacyEOFSemantics, "Treat all outstanding sends as successful on a clean gateway EOF, even sends issued after an error response.")
}

// Config configures a Client. It can be built from CLI flags via
// NewConfig, or decoded from a property bag via ConfigFromOptions.
type Config struct {
	Mode Mode

	CertificateFile    string
	CertificateKeyFile string
	PKCS12File         string
	PKCS12Password     string

	FeedbackInterval   time.Duration
	LegacyEOFSemantics bool
}

// NewConfig builds a Config from the flags registered by
// SetupCommandLineFlags.
func NewConfig() *Config {
	mode := Production
	if env != "production" {
		mode = Sandbox
	}
	return &Config{
		Mode:               mode,
		CertificateFile:    certFile,
		CertificateKeyFile: certKeyFile,
		PKCS12File:         pkcs12File,
		PKCS12Password:     pkcs12Password,
		FeedbackInterval:   feedbackIntervalDuration(feedbackIntervalMin),
		LegacyEOFSemantics: legacyEOFSemantics,
	}
}

// feedbackIntervalDuration converts a minutes value from a flag or
// property bag into a Duration, clamping to the spec's one-minute floor
// (§4.D/§4.F) so a zero or sub-minimum value can never arm a timer with
// a non-positive duration.
func feedbackIntervalDuration(minutes uint32) time.Duration {
	if minutes < minFeedbackIntervalMinutes {
		minutes = minFeedbackIntervalMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// options is the mapstructure decode target mirroring the original
// GObject property bag one-for-one: ssl-cert-file, ssl-key-file,
// tls-certificate (a PKCS#12 bundle path), feedback-interval.
type options struct {
	Env                string `mapstructure:"env"`
	SSLCertFile        string `mapstructure:"ssl-cert-file"`
	SSLKeyFile         string `mapstructure:"ssl-key-file"`
	TLSCertificate     string `mapstructure:"tls-certificate"`
	TLSCertificatePass string `mapstructure:"tls-certificate-password"`
	FeedbackInterval   uint32 `mapstructure:"feedback-interval"`
	LegacyEOFSemantics bool   `mapstructure:"legacy-eof-semantics"`
}

// ConfigFromOptions decodes a Config from a property bag, the path
// callers embedding this library into a GObject-descended configuration
// system will likely use instead of CLI flags.
func ConfigFromOptions(raw map[string]interface{}) (*Config, error) {
	var opts options
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &opts,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("apns: decoding options: %w", err)
	}

	mode := Production
	if opts.Env != "production" {
		mode = Sandbox
	}
	minutes := opts.FeedbackInterval
	if minutes == 0 {
		minutes = defaultFeedbackIntervalMinutes
	}
	interval := feedbackIntervalDuration(minutes)
	return &Config{
		Mode:               mode,
		CertificateFile:    opts.SSLCertFile,
		CertificateKeyFile: opts.SSLKeyFile,
		PKCS12File:         opts.TLSCertificate,
		PKCS12Password:     opts.TLSCertificatePass,
		FeedbackInterval:   interval,
		LegacyEOFSemantics: opts.LegacyEOFSemantics,
	}, nil
}

// Client is the package's public facade: it owns a Session and a
// FeedbackSession over one certificate and publishes a single merged
// event stream for identity removals observed by either.
type Client struct {
	config *Config

	session  *Session
	feedback *FeedbackSession

	events chan Event
}

// NewClient validates cfg's certificate and builds a disconnected
// Client from the struct-literal/pflag construction path.
func NewClient(cfg *Config) (*Client, error) {
	cert, err := loadCertificate(cfg)
	if err != nil {
		logger.Errorf("apns: certificate loading failed: %s", err)
		return nil, err
	}

	c := &Client{
		config: cfg,
		events: make(chan Event, eventQueueSize),
	}

	c.feedback = &FeedbackSession{
		Mode:      cfg.Mode,
		TLSConfig: tlsConfigFor(cfg.Mode.feedbackHostname(), cert),
		OnRemoved: c.dispatchFeedbackEvent,
	}
	c.session = NewSession(SessionConfig{
		Mode:               cfg.Mode,
		TLSConfig:          tlsConfigFor(cfg.Mode.gatewayHostname(), cert),
		FeedbackInterval:   cfg.FeedbackInterval,
		LegacyEOFSemantics: cfg.LegacyEOFSemantics,
		OnEvent:            c.dispatchSessionEvent,
		FeedbackFire:       c.pollFeedback,
	})

	return c, nil
}

// pollFeedback runs one feedback poll on the Session's own timer
// (armFeedbackTimerLocked/fireFeedback in session.go) and logs, rather
// than propagates, a failed poll: the next tick retries.
func (c *Client) pollFeedback() {
	if err := c.feedback.Run(); err != nil {
		logger.Warningf("apns: feedback poll failed: %s", err)
	}
}

// ClientFromOptions builds a Client from a decoded property bag (the
// mapstructure construction path); see ConfigFromOptions.
func ClientFromOptions(raw map[string]interface{}) (*Client, error) {
	cfg, err := ConfigFromOptions(raw)
	if err != nil {
		return nil, err
	}
	return NewClient(cfg)
}

func (c *Client) dispatchSessionEvent(ev sessionEvent) {
	if ev.identityRemoved == nil {
		return
	}
	c.publish(Event{Type: EventIdentityRemoved, Identity: ev.identityRemoved, Timestamp: time.Now().UTC()})
}

func (c *Client) dispatchFeedbackEvent(identity *Identity, at time.Time) {
	c.publish(Event{Type: EventIdentityRemoved, Identity: identity, Timestamp: at})
}

func (c *Client) publish(ev Event) {
	select {
	case c.events <- ev:
	default:
		logger.Warningf("apns: event queue full, dropping identity_removed for %s", ev.Identity.DeviceToken())
	}
}

// Events returns the channel of identity_removed events merged from
// both the gateway session and the feedback poller.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Connect opens the gateway session. The session arms its own feedback
// timer once connected (session.go: armFeedbackTimerLocked), firing
// FeedbackFire every FeedbackInterval.
func (c *Client) Connect() error {
	return c.session.Connect()
}

// Deliver sends one notification over the gateway session.
func (c *Client) Deliver(ctx context.Context, identity *Identity, payload *Payload) (*DeliveryHandle, error) {
	return c.session.Deliver(ctx, identity, payload)
}

// Close shuts down the gateway session, which disarms the feedback
// timer (session.go: disarmFeedbackTimerLocked). It does not close the
// Events channel: callers may still be draining events already
// published before Close was called.
func (c *Client) Close() {
	c.session.Close()
}
