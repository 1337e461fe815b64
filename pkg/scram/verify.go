package scram

import (
	"crypto/hmac"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"unicode/utf8"
)

// ComputeStoredKey derives the value a server keeps for an account in place
// of the password. The result is hex-encoded.
func ComputeStoredKey(password, saltHex string, iterations int) (string, error) {
	if !utf8.ValidString(password) {
		return "", ErrInvalidPassword
	}
	if iterations <= 0 {
		return "", fmt.Errorf("%w: %d", ErrInvalidIterations, iterations)
	}
	salt, err := decodeSalt(saltHex)
	if err != nil {
		return "", err
	}

	salted := saltPassword(password, salt, iterations)
	clientKey := hmacSHA256(salted, ClientKeyLabel)
	storedKey := sha256Sum(clientKey)
	clear(salted)
	clear(clientKey)

	return hex.EncodeToString(storedKey), nil
}

// VerifyClientProof checks a hex proof against a hex stored key.
// It recovers ClientKey = proof XOR HMAC(StoredKey, AuthMessage) and compares
// SHA256(ClientKey) with StoredKey in constant time.
func VerifyClientProof(username, challengeID, storedKeyHex, proofHex string) (bool, error) {
	storedKey, err := hex.DecodeString(storedKeyHex)
	if err != nil || len(storedKey) != KeyLength {
		return false, fmt.Errorf("stored key is malformed")
	}
	proof, err := hex.DecodeString(proofHex)
	if err != nil || len(proof) != KeyLength {
		return false, ErrInvalidProof
	}

	signature := hmacSHA256(storedKey, AuthMessage(username, challengeID))
	clientKey := xorBytes(proof, signature)
	defer clear(clientKey)

	return hmac.Equal(sha256Sum(clientKey), storedKey), nil
}

// GenerateSalt returns SaltLength random bytes, hex-encoded.
func GenerateSalt() (string, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return hex.EncodeToString(salt), nil
}
