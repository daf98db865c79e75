package apns

import (
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
)

const (
	feedbackHostnameProduction = "feedback.push.apple.com"
	feedbackHostnameSandbox    = "feedback.sandbox.push.apple.com"
	feedbackPort               = "2196"
)

// feedbackHostname returns the TLS ServerName the feedback certificate
// is issued for, without the port.
func (m Mode) feedbackHostname() string {
	if m == Sandbox {
		return feedbackHostnameSandbox
	}
	return feedbackHostnameProduction
}

func (m Mode) feedbackHost() string {
	return net.JoinHostPort(m.feedbackHostname(), feedbackPort)
}

// FeedbackSession polls Apple's feedback service on its own TLS
// connection, independent from the gateway session (§5). Each Run opens
// a fresh connection, reads the record stream to EOF, and reports one
// identity per record removed from the device via OnRemoved.
type FeedbackSession struct {
	Mode Mode
	// Host overrides the feedback address the Mode would otherwise pick.
	// Tests use this to point a FeedbackSession at a local mock server.
	Host      string
	TLSConfig *tls.Config
	OnRemoved func(*Identity, time.Time)
}

// Run opens one feedback connection, reads every record until the
// service closes the connection (EOF, the expected terminator), and
// returns. A malformed record ends the read early but is not itself
// fatal to the caller: Run returns the error so the caller can log it
// and retry on the next interval tick.
func (f *FeedbackSession) Run() error {
	if f.TLSConfig == nil || len(f.TLSConfig.Certificates) == 0 {
		return ErrTLSNotAvailable
	}

	connID := uuid.NewString()
	host := f.Host
	if host == "" {
		host = f.Mode.feedbackHost()
	}
	logger.Infof("[%s] connecting to feedback service %s", connID, host)

	dialer := &net.Dialer{Timeout: connectTimeout}
	raw, err := dialer.Dial("tcp", host)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransportError, err)
	}
	defer raw.Close()

	conn := tls.Client(raw, f.TLSConfig)
	if err := conn.Handshake(); err != nil {
		return fmt.Errorf("%w: %v", ErrTransportError, err)
	}

	record := make([]byte, feedbackRecordLen)
	count := 0
	for {
		_, err := io.ReadFull(conn, record)
		if err != nil {
			if err == io.EOF {
				logger.Infof("[%s] feedback stream closed, %d record(s)", connID, count)
				return nil
			}
			return fmt.Errorf("%w: %v", ErrTransportError, err)
		}

		rec, derr := decodeFeedbackRecord(record)
		if derr != nil {
			logger.Errorf("[%s] malformed feedback record: %s", connID, derr)
			return derr
		}
		count++

		if f.OnRemoved != nil {
			identity := NewIdentity(encodeToken(rec.Token))
			f.OnRemoved(identity, time.Unix(int64(rec.Timestamp), 0).UTC())
		}
	}
}
