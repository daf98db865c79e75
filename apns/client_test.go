package apns

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigFromOptionsDecodesPropertyBag(t *testing.T) {
	assert := assert.New(t)

	cfg, err := ConfigFromOptions(map[string]interface{}{
		"env":               "production",
		"ssl-cert-file":     "/etc/apns/cert.pem",
		"ssl-key-file":      "/etc/apns/key.pem",
		"feedback-interval": 20,
	})
	assert.NoError(err)
	assert.Equal(Production, cfg.Mode)
	assert.Equal("/etc/apns/cert.pem", cfg.CertificateFile)
	assert.Equal("/etc/apns/key.pem", cfg.CertificateKeyFile)
	assert.Equal(20*time.Minute, cfg.FeedbackInterval)
}

func TestConfigFromOptionsDefaultsToSandbox(t *testing.T) {
	assert := assert.New(t)

	cfg, err := ConfigFromOptions(map[string]interface{}{
		"ssl-cert-file": "/etc/apns/cert.pem",
		"ssl-key-file":  "/etc/apns/key.pem",
	})
	assert.NoError(err)
	assert.Equal(Sandbox, cfg.Mode)
	assert.Equal(10*time.Minute, cfg.FeedbackInterval)
}

func TestConfigFromOptionsZeroIntervalDefaults(t *testing.T) {
	assert := assert.New(t)

	cfg, err := ConfigFromOptions(map[string]interface{}{
		"ssl-cert-file":     "/etc/apns/cert.pem",
		"ssl-key-file":      "/etc/apns/key.pem",
		"feedback-interval": 0,
	})
	assert.NoError(err)
	assert.Equal(10*time.Minute, cfg.FeedbackInterval)
}

func TestConfigFromOptionsPKCS12Path(t *testing.T) {
	assert := assert.New(t)

	cfg, err := ConfigFromOptions(map[string]interface{}{
		"tls-certificate":          "/etc/apns/bundle.p12",
		"tls-certificate-password": "secret",
	})
	assert.NoError(err)
	assert.Equal("/etc/apns/bundle.p12", cfg.PKCS12File)
	assert.Equal("secret", cfg.PKCS12Password)
}

func TestNewClientWithoutCertificateFails(t *testing.T) {
	assert := assert.New(t)

	_, err := NewClient(&Config{Mode: Sandbox})
	assert.ErrorIs(err, ErrTLSNotAvailable)
}
