// Package clock provides a tiny time abstraction.
//
// Sessions and one-time code checks read time through Clocker so that
// deadlines can be driven deterministically. Manual is the test double: it
// never moves unless Advance or Set is called.
package clock
