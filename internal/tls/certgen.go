// Package tls provides TLS certificate generation and server configuration for mirror-authd.
package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

// DefaultValidDays is the lifetime of generated certificates.
const DefaultValidDays = 365

// subjectAltNames returns SANs covering loopback plus the given hosts.
// Hosts that parse as IPs go into the IP list; wildcard listen addresses are skipped.
func subjectAltNames(hosts []string) (dnsNames []string, ipAddresses []net.IP) {
	dnsNames = []string{"localhost"}
	ipAddresses = []net.IP{net.ParseIP("127.0.0.1"), net.ParseIP("::1")}

	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		dnsNames = append(dnsNames, hostname)
	}

	for _, h := range hosts {
		if h == "" {
			continue
		}
		if ip := net.ParseIP(h); ip != nil {
			if !ip.IsUnspecified() && !ip.IsLoopback() {
				ipAddresses = append(ipAddresses, ip)
			}
			continue
		}
		if h != "localhost" {
			dnsNames = append(dnsNames, h)
		}
	}

	return dnsNames, ipAddresses
}

// GenerateSelfSignedCert writes a self-signed P-256 certificate and key
// valid for validDays. The key file is created owner-readable only.
//
//nolint:gosec // G304: File paths are from config
func GenerateSelfSignedCert(certPath, keyPath string, validDays int, hosts ...string) error {
	if validDays <= 0 {
		validDays = DefaultValidDays
	}

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate private key: %w", err)
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("failed to generate serial number: %w", err)
	}

	dnsNames, ipAddresses := subjectAltNames(hosts)
	now := time.Now()
	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"GitLab Mirror"},
			CommonName:   "mirror-authd",
		},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(time.Duration(validDays) * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              dnsNames,
		IPAddresses:           ipAddresses,
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return fmt.Errorf("failed to create certificate: %w", err)
	}
	keyBytes, err := x509.MarshalECPrivateKey(privateKey)
	if err != nil {
		return fmt.Errorf("failed to marshal private key: %w", err)
	}

	for _, p := range []string{certPath, keyPath} {
		//nolint:gosec // G301: parent of a public certificate
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", p, err)
		}
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: derBytes})
	//nolint:gosec // G306: certificates are public
	if err := os.WriteFile(certPath, certPEM, 0o644); err != nil {
		return fmt.Errorf("failed to write cert: %w", err)
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes})
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		return fmt.Errorf("failed to write key: %w", err)
	}

	return nil
}

// EnsureCertificate generates a self-signed pair unless both files exist
// and the certificate is currently valid. It reports whether it generated one.
func EnsureCertificate(certPath, keyPath string, hosts ...string) (bool, error) {
	if CertificateExists(certPath, keyPath) && ValidateCertificate(certPath) == nil {
		return false, nil
	}
	if err := GenerateSelfSignedCert(certPath, keyPath, DefaultValidDays, hosts...); err != nil {
		return false, err
	}
	return true, nil
}

// CertificateExists checks if both certificate and key files exist.
func CertificateExists(certPath, keyPath string) bool {
	if _, err := os.Stat(certPath); err != nil {
		return false
	}
	if _, err := os.Stat(keyPath); err != nil {
		return false
	}
	return true
}

// ValidateCertificate checks if a certificate file is valid and not expired.
//
//nolint:gosec // G304: Certificate path is from config
func ValidateCertificate(certPath string) error {
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return fmt.Errorf("failed to read certificate: %w", err)
	}

	block, _ := pem.Decode(certPEM)
	if block == nil {
		return fmt.Errorf("failed to decode PEM block")
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return fmt.Errorf("failed to parse certificate: %w", err)
	}

	now := time.Now()
	if now.Before(cert.NotBefore) {
		return fmt.Errorf("certificate is not yet valid")
	}
	if now.After(cert.NotAfter) {
		return fmt.Errorf("certificate has expired")
	}

	return nil
}
