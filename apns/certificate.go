package apns

import (
	"crypto/tls"
	"os"

	pkcs12 "software.sslmate.com/src/go-pkcs12"
)

// loadCertificate picks whichever of cfg's two certificate sources is
// configured: a PEM keypair (CertificateFile/CertificateKeyFile) or a
// PKCS#12 bundle (PKCS12File/PKCS12Password). If both are set, the
// PKCS#12 bundle is used; if neither is, it returns ErrTLSNotAvailable.
func loadCertificate(cfg *Config) (tls.Certificate, error) {
	switch {
	case cfg.PKCS12File != "":
		return loadPKCS12Certificate(cfg.PKCS12File, cfg.PKCS12Password)
	case cfg.CertificateFile != "" && cfg.CertificateKeyFile != "":
		return tls.LoadX509KeyPair(cfg.CertificateFile, cfg.CertificateKeyFile)
	default:
		return tls.Certificate{}, ErrTLSNotAvailable
	}
}

// loadPKCS12Certificate decodes a PKCS#12 bundle into a tls.Certificate,
// the format Apple's Member Center issues push certificates in.
func loadPKCS12Certificate(path, password string) (tls.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tls.Certificate{}, err
	}

	key, leaf, chain, err := pkcs12.DecodeChain(data, password)
	if err != nil {
		return tls.Certificate{}, err
	}

	cert := tls.Certificate{
		Certificate: [][]byte{leaf.Raw},
		PrivateKey:  key,
		Leaf:        leaf,
	}
	for _, ca := range chain {
		cert.Certificate = append(cert.Certificate, ca.Raw)
	}
	return cert, nil
}

// tlsConfigFor builds the tls.Config a Session/FeedbackSession dials
// with: the loaded certificate, verified against the system root pool
// under hostname, matching what the client will actually dial. The
// gateway and feedback services live on different hostnames, so each
// needs its own config — never share one between them.
func tlsConfigFor(hostname string, cert tls.Certificate) *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		ServerName:   hostname,
	}
}
