// Package tls pins the TLS certificates of mirror servers that are not
// signed by a trusted CA, such as a mirror-authd running with a
// self-signed certificate.
package tls

import (
	"crypto/sha256"
	"crypto/subtle"
	"crypto/x509"
	"encoding/base64"
)

const fingerprintPrefix = "SHA256:"

// ComputeFingerprint returns "SHA256:<base64>" of the DER-encoded certificate.
func ComputeFingerprint(cert *x509.Certificate) string {
	hash := sha256.Sum256(cert.Raw)
	return fingerprintPrefix + base64.StdEncoding.EncodeToString(hash[:])
}

// FingerprintMatches checks if a certificate's fingerprint matches the expected value.
func FingerprintMatches(cert *x509.Certificate, expected string) bool {
	if expected == "" {
		return false
	}
	actual := ComputeFingerprint(cert)
	return subtle.ConstantTimeCompare([]byte(actual), []byte(expected)) == 1
}
