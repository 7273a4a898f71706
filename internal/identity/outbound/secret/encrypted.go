package secret

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/shandysiswandi/facegate/internal/identity/entity"
	"github.com/shandysiswandi/facegate/internal/pkg/mfa"
)

// Store is the credential store contract both File and the postgres
// repository satisfy.
type Store interface {
	GetSecret(ctx context.Context, id entity.Identity) (string, bool, error)
	PutSecret(ctx context.Context, id entity.Identity, secret string) error
	DeleteSecret(ctx context.Context, id entity.Identity) error
	ListSecrets(ctx context.Context) ([]entity.Identity, error)
}

// Encrypted seals secrets with AES-GCM before they reach the inner store.
// The ciphertext is bound to the identity, so rows cannot be swapped.
type Encrypted struct {
	inner Store
	enc   mfa.Encryptor
}

func NewEncrypted(inner Store, enc mfa.Encryptor) *Encrypted {
	return &Encrypted{inner: inner, enc: enc}
}

func scope(id entity.Identity) mfa.Scope {
	return mfa.Scope{Identity: string(id), Purpose: mfa.PurposeOTPSeed}
}

func (e *Encrypted) GetSecret(ctx context.Context, id entity.Identity) (string, bool, error) {
	sealed, ok, err := e.inner.GetSecret(ctx, id)
	if err != nil || !ok {
		return "", ok, err
	}

	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", false, fmt.Errorf("secret: decode %s: %w", id, err)
	}

	plain, err := e.enc.Decrypt(raw, scope(id))
	if err != nil {
		return "", false, fmt.Errorf("secret: decrypt %s: %w", id, err)
	}

	return string(plain), true, nil
}

func (e *Encrypted) PutSecret(ctx context.Context, id entity.Identity, secret string) error {
	sealed, err := e.enc.Encrypt([]byte(secret), scope(id))
	if err != nil {
		return fmt.Errorf("secret: encrypt %s: %w", id, err)
	}

	return e.inner.PutSecret(ctx, id, base64.StdEncoding.EncodeToString(sealed))
}

func (e *Encrypted) DeleteSecret(ctx context.Context, id entity.Identity) error {
	return e.inner.DeleteSecret(ctx, id)
}

func (e *Encrypted) ListSecrets(ctx context.Context) ([]entity.Identity, error) {
	return e.inner.ListSecrets(ctx)
}
