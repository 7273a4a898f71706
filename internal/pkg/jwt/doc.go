// Package jwt issues and verifies the HS512 access tokens handed out after a
// successful two-factor verification or admin login, and carries verified
// claims through a request context.
package jwt
