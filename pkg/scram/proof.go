package scram

import (
	"encoding/hex"
	"fmt"
	"unicode/utf8"
)

// DerivedSecrets holds every intermediate value of a proof computation.
// None of it may be persisted or logged.
type DerivedSecrets struct {
	SaltedPassword  []byte
	ClientKey       []byte
	StoredKey       []byte
	AuthMessage     string
	ClientSignature []byte
	ClientProof     []byte
}

// Proof returns the client proof as lowercase hex.
func (d *DerivedSecrets) Proof() string {
	return hex.EncodeToString(d.ClientProof)
}

// Clear zeroes the key material.
func (d *DerivedSecrets) Clear() {
	for _, b := range [][]byte{d.SaltedPassword, d.ClientKey, d.StoredKey, d.ClientSignature, d.ClientProof} {
		clear(b)
	}
	d.AuthMessage = ""
}

// AuthMessage binds a proof to one user and one challenge.
func AuthMessage(username, challengeID string) string {
	return username + ":" + challengeID
}

// Derive computes the full secret chain for one login attempt.
// saltHex is the hex-encoded account salt as returned by the server.
func Derive(username, password, challengeID, saltHex string, iterations int) (*DerivedSecrets, error) {
	if username == "" {
		return nil, ErrEmptyUsername
	}
	if challengeID == "" {
		return nil, ErrEmptyChallenge
	}
	if !utf8.ValidString(password) {
		return nil, ErrInvalidPassword
	}
	if iterations <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidIterations, iterations)
	}
	salt, err := decodeSalt(saltHex)
	if err != nil {
		return nil, err
	}

	d := &DerivedSecrets{}
	d.SaltedPassword = saltPassword(password, salt, iterations)
	d.ClientKey = hmacSHA256(d.SaltedPassword, ClientKeyLabel)
	d.StoredKey = sha256Sum(d.ClientKey)
	d.AuthMessage = AuthMessage(username, challengeID)
	d.ClientSignature = hmacSHA256(d.StoredKey, d.AuthMessage)
	d.ClientProof = xorBytes(d.ClientKey, d.ClientSignature)

	return d, nil
}

// ComputeClientProof returns the hex-encoded proof that username knows
// password, bound to challengeID. The result is deterministic in its inputs.
func ComputeClientProof(username, password, challengeID, saltHex string, iterations int) (string, error) {
	d, err := Derive(username, password, challengeID, saltHex, iterations)
	if err != nil {
		return "", err
	}
	defer d.Clear()

	return d.Proof(), nil
}

func decodeSalt(saltHex string) ([]byte, error) {
	if saltHex == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidSalt)
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSalt, err)
	}
	return salt, nil
}
