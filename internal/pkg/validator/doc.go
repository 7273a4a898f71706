// Package validator validates request and domain structs with
// go-playground/validator and reports failures as a snake_case field map.
//
// Custom tags: "identity" for account names and "otp" for one-time codes.
package validator
