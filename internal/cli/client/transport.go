package client

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"time"

	cliTLS "github.com/gitlab-mirror/mirrorauth/internal/cli/tls"
)

// NewTransport returns an HTTP transport that requires TLS 1.2 or newer.
//
// If caCertPath is set, server certificates are validated against that
// bundle. Otherwise, with a verifier, certificates that do not chain to the
// system roots are pinned on first use for hostport. With neither, the
// system roots apply.
func NewTransport(hostport, caCertPath string, verifier *cliTLS.Verifier) (*http.Transport, error) {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	switch {
	case caCertPath != "":
		caCert, err := os.ReadFile(caCertPath) // #nosec G304 - caCertPath is user-provided config
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}

		certPool := x509.NewCertPool()
		if !certPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate %s", caCertPath)
		}
		tlsConfig.RootCAs = certPool
	case verifier != nil:
		tlsConfig = verifier.ClientConfig(hostport)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsConfig
	transport.TLSHandshakeTimeout = 10 * time.Second
	return transport, nil
}
