// Package session holds the two frame-driven state machines: Registration,
// which captures the first usable face for a new identity, and Verification,
// which matches live frames against a claimed identity until it accepts or
// its deadline passes.
//
// Neither machine sleeps or owns a timer. Callers pass the current time and a
// frame source on every step, so the same code runs behind an HTTP handler, a
// polling loop or a test with a manual clock.
package session
