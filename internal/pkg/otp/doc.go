// Package otp provides the time-based one-time code factor (TOTP, RFC 6238).
//
// Generate creates a secret plus an otpauth provisioning URI for an
// authenticator app. Validate checks a code against a secret with the
// configured clock skew.
package otp
