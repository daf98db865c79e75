package apns

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Mode selects which of Apple's APS environments a Session talks to.
type Mode int

const (
	Production Mode = iota
	Sandbox
)

const (
	gatewayHostnameProduction = "gateway.push.apple.com"
	gatewayHostnameSandbox    = "gateway.sandbox.push.apple.com"
	gatewayPort               = "2195"

	connectTimeout = 60 * time.Second
)

// gatewayHostname returns the TLS ServerName the gateway certificate is
// issued for, without the port.
func (m Mode) gatewayHostname() string {
	if m == Sandbox {
		return gatewayHostnameSandbox
	}
	return gatewayHostnameProduction
}

func (m Mode) gatewayHost() string {
	return net.JoinHostPort(m.gatewayHostname(), gatewayPort)
}

// pendingSend is the session's bookkeeping entry for one in-flight
// delivery. It can be completed at most once: by the reader loop (on a
// matching error response or on EOF/transport failure), or by an
// explicit Cancel() from the caller. Whichever happens first wins; the
// rest are no-ops.
type pendingSend struct {
	requestID   uint32
	deviceToken string

	mu       sync.Mutex
	err      error
	resolved bool
	done     chan struct{}
}

func newPendingSend(requestID uint32, deviceToken string) *pendingSend {
	return &pendingSend{
		requestID:   requestID,
		deviceToken: deviceToken,
		done:        make(chan struct{}),
	}
}

func (p *pendingSend) complete(err error) {
	p.mu.Lock()
	if p.resolved {
		p.mu.Unlock()
		return
	}
	p.resolved = true
	p.err = err
	p.mu.Unlock()
	close(p.done)
}

// DeliveryHandle is returned by Session.Deliver. Exactly one of "Wait
// returns an error/nil" eventually becomes true, per the spec's
// testable property 6.
type DeliveryHandle struct {
	p *pendingSend
}

// Wait blocks until the delivery resolves or ctx is done, whichever
// comes first. A nil return means APS accepted the notification
// (silence, APS's own convention).
func (h *DeliveryHandle) Wait(ctx context.Context) error {
	select {
	case <-h.p.done:
		return h.p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel marks the delivery CANCELLED from the caller's point of view.
// If the frame already reached the wire this is best-effort: APS may
// still process it, but the caller stops waiting. The pending entry
// itself is left in the session's map so a later error response still
// has somewhere to land.
func (h *DeliveryHandle) Cancel() {
	h.p.complete(ErrCancelled)
}

// sessionEvent mirrors the Client-facing Event but stays internal to
// this file; Client wraps it as it sees fit.
type sessionEvent struct {
	identityRemoved *Identity
}

// Session owns a single persistent TLS connection to the APS gateway.
// It multiplexes concurrent Deliver calls over that connection and
// routes asynchronous error responses back to their originating call.
type Session struct {
	mode               Mode
	host               string
	tlsConfig          *tls.Config
	legacyEOFSemantics bool
	onEvent            func(sessionEvent)

	mu      sync.Mutex
	conn    *tls.Conn
	pending map[uint32]*pendingSend
	counter uint32

	feedbackInterval time.Duration
	feedbackFire     func()
	feedbackTimer    *time.Timer
}

// SessionConfig configures a new Session.
type SessionConfig struct {
	Mode Mode
	// Host overrides the gateway address the Mode would otherwise pick.
	// Tests use this to point a Session at a local mock server.
	Host               string
	TLSConfig          *tls.Config
	FeedbackInterval   time.Duration
	LegacyEOFSemantics bool
	// OnEvent receives identity_removed notifications observed on the
	// gateway connection (INVALID_TOKEN responses). FeedbackSession
	// events flow through the Client, not through here.
	OnEvent func(sessionEvent)
	// FeedbackFire is invoked on the session's own timer, every
	// FeedbackInterval, once the session is connected. It is owned by
	// the Client, which wires it to a FeedbackSession.Run.
	FeedbackFire func()
}

// NewSession builds a disconnected Session from cfg.
func NewSession(cfg SessionConfig) *Session {
	interval := cfg.FeedbackInterval
	if interval < time.Minute {
		interval = time.Minute
	}
	var seed [4]byte
	_, _ = rand.Read(seed[:])
	return &Session{
		mode:               cfg.Mode,
		host:               cfg.Host,
		tlsConfig:          cfg.TLSConfig,
		legacyEOFSemantics: cfg.LegacyEOFSemantics,
		onEvent:            cfg.OnEvent,
		pending:            make(map[uint32]*pendingSend),
		counter:            binary.BigEndian.Uint32(seed[:]),
		feedbackInterval:   interval,
		feedbackFire:       cfg.FeedbackFire,
	}
}

// Connect dials the gateway, completes a TLS handshake with the
// configured certificate, and arms the reader loop and feedback timer.
func (s *Session) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return ErrAlreadyConnected
	}
	if s.tlsConfig == nil || len(s.tlsConfig.Certificates) == 0 {
		return ErrTLSNotAvailable
	}

	connID := uuid.NewString()
	host := s.host
	if host == "" {
		host = s.mode.gatewayHost()
	}
	logger.Infof("[%s] connecting to gateway %s", connID, host)

	dialer := &net.Dialer{Timeout: connectTimeout}
	raw, err := dialer.Dial("tcp", host)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransportError, err)
	}

	tlsConn := tls.Client(raw, s.tlsConfig)
	tlsConn.SetDeadline(time.Now().Add(connectTimeout))
	if err := tlsConn.Handshake(); err != nil {
		raw.Close()
		return fmt.Errorf("%w: %v", ErrTransportError, err)
	}
	tlsConn.SetDeadline(time.Time{})

	s.conn = tlsConn
	s.pending = make(map[uint32]*pendingSend)
	go s.readLoop(connID, tlsConn)
	s.armFeedbackTimerLocked()
	return nil
}

// Deliver encodes and writes one notification frame, returning a handle
// the caller can Wait on for the eventual outcome.
func (s *Session) Deliver(ctx context.Context, identity *Identity, payload *Payload) (*DeliveryHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrCancelled
	}

	token, err := identity.Decoded()
	if err != nil {
		return nil, err
	}
	jsonPayload, err := payload.RenderJSON()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil, ErrNotConnected
	}

	id := s.nextRequestIDLocked()
	frame := encodeSendFrame(id, 0, token, []byte(jsonPayload))

	p := newPendingSend(id, identity.DeviceToken())
	s.pending[id] = p

	if _, err := s.conn.Write(frame); err != nil {
		delete(s.pending, id)
		go s.failLocked(fmt.Errorf("%w: %v", ErrTransportError, err))
		return nil, fmt.Errorf("%w: %v", ErrTransportError, err)
	}

	return &DeliveryHandle{p: p}, nil
}

// nextRequestIDLocked returns the next request id, skipping any id
// still present in the pending map (§4.D/§9). Caller must hold s.mu.
func (s *Session) nextRequestIDLocked() uint32 {
	for {
		s.counter++
		if _, exists := s.pending[s.counter]; !exists {
			return s.counter
		}
	}
}

// Close tears down the connection, disarms the feedback timer, and
// completes every outstanding pending send with ErrSessionClosed.
func (s *Session) Close() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	pending := s.pending
	s.pending = make(map[uint32]*pendingSend)
	s.disarmFeedbackTimerLocked()
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	for _, p := range pending {
		p.complete(ErrSessionClosed)
	}
}

func (s *Session) armFeedbackTimerLocked() {
	if s.feedbackFire == nil || s.feedbackTimer != nil {
		return
	}
	s.feedbackTimer = time.AfterFunc(s.feedbackInterval, s.fireFeedback)
}

func (s *Session) fireFeedback() {
	s.feedbackFire()
	s.mu.Lock()
	if s.feedbackTimer != nil {
		s.feedbackTimer.Reset(s.feedbackInterval)
	}
	s.mu.Unlock()
}

func (s *Session) disarmFeedbackTimerLocked() {
	if s.feedbackTimer != nil {
		s.feedbackTimer.Stop()
		s.feedbackTimer = nil
	}
}

// readLoop repeatedly reads exactly 6 bytes (short reads accumulate via
// io.ReadFull) and processes them as an error-response frame, per the
// three outcomes in §4.D.
func (s *Session) readLoop(connID string, conn *tls.Conn) {
	header := make([]byte, errorFrameLength)
	var failedID *uint32

	for {
		_, err := io.ReadFull(conn, header)
		if err != nil {
			if err == io.EOF {
				logger.Infof("[%s] gateway closed connection cleanly", connID)
				s.handleEOF(failedID)
			} else {
				logger.Warningf("[%s] gateway read error: %s", connID, err)
				s.handleTransportError(err)
			}
			return
		}

		status, reqID, derr := decodeErrorFrame(header)
		if derr != nil {
			logger.Errorf("[%s] malformed error response: %s", connID, derr)
			s.handleTransportError(derr)
			return
		}

		logger.Warningf("[%s] received error response: %s for #%d", connID, status, reqID)
		s.handleErrorResponse(status, reqID)
		id := reqID
		failedID = &id
	}
}

func (s *Session) handleErrorResponse(status Status, reqID uint32) {
	s.mu.Lock()
	p, ok := s.pending[reqID]
	if ok {
		delete(s.pending, reqID)
	}
	s.mu.Unlock()

	if !ok {
		return
	}
	if status == StatusInvalidToken && s.onEvent != nil {
		s.onEvent(sessionEvent{identityRemoved: NewIdentity(p.deviceToken)})
	}
	p.complete(&APSError{Status: status, RequestID: reqID})
}

// handleEOF implements the clean-EOF outcome. Sends strictly after the
// last error response are indeterminate and, under the strict (default)
// semantics, resolve SESSION_CLOSED rather than success.
func (s *Session) handleEOF(failedID *uint32) {
	s.mu.Lock()
	pending := s.pending
	s.pending = make(map[uint32]*pendingSend)
	s.conn = nil
	s.mu.Unlock()

	for id, p := range pending {
		if !s.legacyEOFSemantics && failedID != nil && id > *failedID {
			p.complete(ErrSessionClosed)
		} else {
			p.complete(nil)
		}
	}
}

func (s *Session) handleTransportError(err error) {
	s.failLocked(fmt.Errorf("%w: %v", ErrTransportError, err))
}

func (s *Session) failLocked(err error) {
	s.mu.Lock()
	pending := s.pending
	s.pending = make(map[uint32]*pendingSend)
	s.conn = nil
	s.disarmFeedbackTimerLocked()
	s.mu.Unlock()

	for _, p := range pending {
		p.complete(err)
	}
}
