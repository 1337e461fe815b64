package tls_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cliTLS "github.com/gitlab-mirror/mirrorauth/internal/cli/tls"
)

func TestComputeFingerprint(t *testing.T) {
	cert := createTestCertificate(t, "mirror.local")

	fp := cliTLS.ComputeFingerprint(cert)
	assert.True(t, strings.HasPrefix(fp, "SHA256:"))
	// 32 bytes of sha256 are 44 base64 characters.
	assert.Len(t, fp, len("SHA256:")+44)
	assert.Equal(t, fp, cliTLS.ComputeFingerprint(cert), "fingerprint should be stable")
}

func TestComputeFingerprint_SameCN_DifferentKeys(t *testing.T) {
	cert1 := createTestCertificate(t, "same.local")
	cert2 := createTestCertificate(t, "same.local")

	assert.NotEqual(t, cliTLS.ComputeFingerprint(cert1), cliTLS.ComputeFingerprint(cert2))
}

func TestFingerprintMatches(t *testing.T) {
	cert := createTestCertificate(t, "mirror.local")
	other := createTestCertificate(t, "other.local")

	tests := []struct {
		name        string
		fingerprint string
		want        bool
	}{
		{"own fingerprint", cliTLS.ComputeFingerprint(cert), true},
		{"other certificate", cliTLS.ComputeFingerprint(other), false},
		{"empty", "", false},
		{"missing prefix", "abcdef123456", false},
		{"wrong prefix", "MD5:abcdef123456", false},
		{"invalid base64", "SHA256:!!!invalid!!!", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cliTLS.FingerprintMatches(cert, tt.fingerprint))
		})
	}
}

// createTestCertificate returns a self-signed server certificate for commonName.
func createTestCertificate(t *testing.T, commonName string) *x509.Certificate {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject: pkix.Name{
			CommonName:   commonName,
			Organization: []string{"GitLab Mirror Test"},
		},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{commonName},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}
