package entity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRemovalError(t *testing.T) {
	storeErr := errors.New("disk full")
	err := error(&RemovalError{
		Identity: "alice",
		Failed:   map[string]error{"secret": storeErr, "reference": errors.New("timeout")},
	})

	assert.ErrorIs(t, err, ErrRemovalIncomplete)
	assert.ErrorIs(t, err, storeErr)
	assert.Equal(t, "identity: removal of alice incomplete: reference, secret", err.Error())
}

func TestStatusStrings(t *testing.T) {
	assert.Equal(t, "TimedOut", SessionStatusTimedOut.String())
	assert.True(t, SessionStatusAborted.IsTerminal())
	assert.False(t, SessionStatusVerifying.IsTerminal())

	assert.Equal(t, "Captured", RegistrationCaptured.String())
	assert.False(t, RegistrationCaptured.IsTerminal())
	assert.True(t, RegistrationAbandoned.IsTerminal())
}

func TestBoundingBoxArea(t *testing.T) {
	assert.Equal(t, 6, BoundingBox{Left: 1, Top: 1, Right: 4, Bottom: 3}.Area())
	assert.Equal(t, 0, BoundingBox{Left: 4, Right: 1, Bottom: 3}.Area())
}
