// Package scram provides the SCRAM-style client proof used by the mirror
// authentication protocol and the matching server-side verification.
//
// The client never sends its password. It derives a proof from the password,
// the account salt and a single-use challenge issued by the server:
//
//	SaltedPassword  = PBKDF2-HMAC-SHA256(password, salt, iterations, 32)
//	ClientKey       = HMAC-SHA256(SaltedPassword, "Client Key")
//	StoredKey       = SHA256(ClientKey)
//	AuthMessage     = username + ":" + challengeID
//	ClientSignature = HMAC-SHA256(StoredKey, AuthMessage)
//	ClientProof     = ClientKey XOR ClientSignature
//
// The server holds only StoredKey and recovers ClientKey from the proof.
package scram

import "errors"

// Protocol parameters. These MUST match the server.
const (
	// ClientKeyLabel is the HMAC message used to derive ClientKey.
	ClientKeyLabel = "Client Key"

	// KeyLength is the PBKDF2 output length in bytes.
	KeyLength = 32

	// DefaultIterations is the PBKDF2 work factor assigned to new accounts.
	DefaultIterations = 4096

	// SaltLength is the length in bytes of generated account salts.
	SaltLength = 16

	// ProofLength is the length of a hex-encoded client proof.
	ProofLength = 2 * KeyLength
)

// Validation errors returned before any key derivation takes place.
var (
	ErrEmptyUsername     = errors.New("username must not be empty")
	ErrEmptyChallenge    = errors.New("challenge id must not be empty")
	ErrInvalidPassword   = errors.New("password is not valid UTF-8")
	ErrInvalidSalt       = errors.New("salt is not a valid hex string")
	ErrInvalidIterations = errors.New("iteration count must be positive")
	ErrInvalidProof      = errors.New("client proof is malformed")
)
