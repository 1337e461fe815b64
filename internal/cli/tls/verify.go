package tls

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
)

// ErrCertificateRejected is returned when the user declines an unknown certificate.
var ErrCertificateRejected = errors.New("certificate rejected by user")

// Verifier checks server certificates during the TLS handshake. A chain
// that verifies against roots is accepted as is. Anything else must be
// pinned in the store, or accepted through the prompter and then pinned.
type Verifier struct {
	store  *CertificateStore
	prompt Prompter
	// roots is nil for the system pool.
	roots *x509.CertPool
}

// NewVerifier creates a verifier. prompt may be nil, in which case unknown
// certificates are rejected.
func NewVerifier(store *CertificateStore, prompt Prompter, roots *x509.CertPool) *Verifier {
	return &Verifier{store: store, prompt: prompt, roots: roots}
}

// ClientConfig returns a TLS 1.2+ client config for hostport that verifies
// through v. Go's own chain check is disabled and replaced by
// VerifyConnection, which still sees the full peer chain.
func (v *Verifier) ClientConfig(hostport string) *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		//nolint:gosec // G402: verification happens in VerifyConnection
		InsecureSkipVerify: true,
		VerifyConnection: func(cs tls.ConnectionState) error {
			return v.Verify(hostport, cs.PeerCertificates)
		},
	}
}

// Verify decides whether chain is acceptable for hostport.
func (v *Verifier) Verify(hostport string, chain []*x509.Certificate) error {
	if len(chain) == 0 {
		return errors.New("no TLS certificate received from server")
	}
	leaf := chain[0]

	if v.verifyChain(hostport, chain) == nil {
		return nil
	}

	if err := v.store.VerifyFingerprint(hostport, leaf); err != nil {
		return err
	}
	if v.store.IsKnown(hostport, leaf) {
		return nil
	}

	if v.prompt == nil || !v.prompt(hostport, leaf) {
		return ErrCertificateRejected
	}
	if err := v.store.Add(hostport, leaf); err != nil {
		return fmt.Errorf("failed to save certificate: %w", err)
	}
	return nil
}

func (v *Verifier) verifyChain(hostport string, chain []*x509.Certificate) error {
	host := hostport
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		host = h
	}

	intermediates := x509.NewCertPool()
	for _, c := range chain[1:] {
		intermediates.AddCert(c)
	}

	_, err := chain[0].Verify(x509.VerifyOptions{
		DNSName:       host,
		Roots:         v.roots,
		Intermediates: intermediates,
	})
	return err
}
