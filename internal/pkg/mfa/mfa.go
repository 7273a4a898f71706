// Package mfa protects second-factor material at rest.
//
// Secrets are sealed with AES-256-GCM and bound to the identity and purpose
// they belong to, so a ciphertext copied onto another account's line fails
// to open.
package mfa

// Purpose identifies what a sealed value is used for.
type Purpose string

// PurposeOTPSeed scopes encryption to TOTP seeds.
const PurposeOTPSeed Purpose = "otp_seed"

// Scope binds a ciphertext to its owner. It is hashed into the GCM AAD.
type Scope struct {
	Identity string
	Purpose  Purpose
}

// Encryptor seals and opens secret material.
type Encryptor interface {
	Encrypt(plaintext []byte, scope Scope) ([]byte, error)
	Decrypt(ciphertext []byte, scope Scope) ([]byte, error)
}

// KeyProvider provides raw AES keys. For AES-256-GCM, keys must be 32 bytes.
type KeyProvider interface {
	Key(scope Scope) ([]byte, error)
}

// StaticKeyProvider returns the same key for every scope.
type StaticKeyProvider struct {
	KeyBytes []byte
}

// Key returns a copy of the static key.
func (p StaticKeyProvider) Key(_ Scope) ([]byte, error) {
	if len(p.KeyBytes) == 0 {
		return nil, ErrMissingStaticKey
	}

	k := make([]byte, len(p.KeyBytes))
	copy(k, p.KeyBytes)
	return k, nil
}
