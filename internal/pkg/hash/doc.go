// Package hash verifies secrets against stored bcrypt hashes. It backs the
// admin password check, which is kept apart from the OTP and face factors.
package hash
