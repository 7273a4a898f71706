package config

import (
	"io"
	"time"
)

// TimeConfig defines helpers for retrieving time-based configuration values.
type TimeConfig interface {
	// GetMillisecond retrieves the value associated with key as milliseconds.
	GetMillisecond(key string) time.Duration

	// GetSecond retrieves the value associated with key as seconds.
	// If the key does not exist or the value cannot be converted to an integer,
	// the implementation should handle it accordingly (e.g., return a default value).
	GetSecond(key string) time.Duration

	// GetMinute retrieves the value associated with key as minutes.
	GetMinute(key string) time.Duration
}

// Config defines a set of methods for retrieving configuration values of various types.
// Implementations handle retrieval and type conversion, falling back to the
// registered defaults when a key is absent.
type Config interface {
	io.Closer
	TimeConfig

	GetInt(key string) int
	GetUint(key string) uint
	GetFloat64(key string) float64
	GetBool(key string) bool
	GetString(key string) string

	// GetBinary retrieves the value associated with key as a byte slice.
	// Configuration value is stored as base64 encoded.
	GetBinary(key string) []byte

	// GetArray retrieves the value associated with key as a slice of strings.
	// Configuration value is stored with format <element1>,<element2>,...
	GetArray(key string) []string
}

// Defaults are applied before the config file is read, so every face and
// session tunable has a value even with an empty file.
var Defaults = map[string]any{
	"app.name":                           "facegate",
	"app.env":                            "development",
	"app.tz":                             "UTC",
	"app.startup_timeout_seconds":        30,
	"server.address":                     ":8080",
	"server.read_timeout_seconds":        15,
	"server.read_header_timeout_seconds": 5,
	"server.write_timeout_seconds":       15,
	"server.idle_timeout_seconds":        60,
	"server.max_frame_bytes":             4 << 20,
	"server.cors_origins":                "*",
	"face.threshold":                     0.6,
	"face.strict_nearest":                true,
	"face.encoding_dim":                  128,
	"verification.deadline_seconds":      10,
	"verification.tick_interval_ms":      100,
	"verification.session_grace_seconds": 30,
	"registration.frame_budget":          30,
	"registration.timeout_seconds":       60,
	"mfa.totp.issuer":                    "FaceRecApp",
	"mfa.totp.period":                    30,
	"mfa.totp.skew":                      1,
	"mfa.totp.digits":                    6,
	"credential.driver":                  "file",
	"credential.file.path":               "./data/user_secrets.txt",
	"credential.encrypted":               false,
	"encoding.driver":                    "memory",
	"storage.driver":                     "local",
	"storage.bucket":                     "facegate",
	"storage.local.root":                 "./data",
	"messaging.driver":                   "noop",
	"redis.enabled":                      false,
	"extractor.url":                      "http://127.0.0.1:5000",
	"extractor.timeout_ms":               3000,
	"extractor.max_side":                 640,
	"extractor.max_response_bytes":       1 << 20,
	"jwt.issuer":                         "facegate",
	"jwt.audiences":                      "facegate",
	"jwt.ttl_minutes":                    15,
	"admin.username":                     "admin",
	"authz.policies":                     "admin:accounts:*",
	"hash.bcrypt.cost":                   12,
	"database.pool.max_conns":            10,
	"database.pool.min_conns":            1,
	"messaging.nsq.dial_timeout_seconds": 5,
	"messaging.kafka.timeout_seconds":    5,
	"messaging.nats.timeout_seconds":     5,
	"instrument.trace_sample_ratio":      1.0,
	"instrument.metric_interval_seconds": 15,
	"goroutine.max":                      64,
	"instrument.enabled":                 false,
	"instrument.log_level":               "info",
	"instrument.log_mask_fields":         "secret,code,password,token,access_token,password_hash",
}
