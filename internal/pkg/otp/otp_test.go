package otp

import (
	"net/url"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTOTP_GenerateAndValidate(t *testing.T) {
	o := NewTOTP("FaceRecApp", 30, 1, otp.DigitsSix)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	secret, uri, err := o.Generate("alice")
	require.NoError(t, err)
	require.NotEmpty(t, secret)

	u, err := url.Parse(uri)
	require.NoError(t, err)
	assert.Equal(t, "otpauth", u.Scheme)
	assert.Equal(t, "FaceRecApp", u.Query().Get("issuer"))
	assert.Equal(t, secret, u.Query().Get("secret"))

	code, err := o.GenerateCode(secret, at)
	require.NoError(t, err)
	assert.Len(t, code, 6)

	assert.True(t, o.Validate(code, secret, at))
	assert.True(t, o.Validate(code, secret, at.Add(30*time.Second)), "within skew")
	assert.False(t, o.Validate(code, secret, at.Add(5*time.Minute)))
	assert.False(t, o.Validate("000000x", secret, at))
}

func TestTOTP_ProvisioningURI(t *testing.T) {
	o := NewTOTP("FaceRecApp", 0, 1, 7)

	secret, uri, err := o.Generate("bob")
	require.NoError(t, err)

	again, err := o.ProvisioningURI("bob", secret)
	require.NoError(t, err)
	assert.Equal(t, uri, again)

	_, err = o.ProvisioningURI("bob", "not base32 !!")
	require.ErrorIs(t, err, ErrInvalidSecret)
}

func TestTOTP_Window(t *testing.T) {
	assert.Equal(t, 90*time.Second, NewTOTP("x", 30, 1, otp.DigitsSix).Window())
	assert.Equal(t, 30*time.Second, NewTOTP("x", 30, 0, otp.DigitsSix).Window())
}
