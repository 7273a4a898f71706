package goerror

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeInternal, http.StatusInternalServerError},
		{CodeInvalidFormat, http.StatusBadRequest},
		{CodeInvalidInput, http.StatusUnprocessableEntity},
		{CodeUnprocessable, http.StatusUnprocessableEntity},
		{CodeNotFound, http.StatusNotFound},
		{CodeConflict, http.StatusConflict},
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeForbidden, http.StatusForbidden},
		{CodeTimeout, http.StatusRequestTimeout},
		{CodeUnavailable, http.StatusServiceUnavailable},
		{CodeGone, http.StatusGone},
	}

	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			var ge *Error
			require.ErrorAs(t, NewBusiness("x", tt.code), &ge)
			assert.Equal(t, tt.want, ge.StatusCode())
		})
	}
}

func TestNewBusiness_Fields(t *testing.T) {
	var ge *Error
	require.ErrorAs(t, NewBusiness("cleanup incomplete", CodeInternal, "failed", "credential"), &ge)

	assert.Equal(t, TypeBusiness, ge.Type())
	assert.Equal(t, "cleanup incomplete", ge.Error())
	assert.Equal(t, map[string]string{"failed": "credential"}, ge.Fields())
}

func TestNewServerAndUnavailable(t *testing.T) {
	cause := errors.New("dial tcp: refused")

	var ge *Error
	require.ErrorAs(t, NewServer(cause), &ge)
	assert.ErrorIs(t, ge, cause)
	assert.Equal(t, TypeServer, ge.Type())
	assert.Contains(t, ge.String(), "ERROR_CODE_INTERNAL")

	require.ErrorAs(t, NewUnavailable(cause), &ge)
	assert.Equal(t, http.StatusServiceUnavailable, ge.StatusCode())
}

func TestNewInvalidInput(t *testing.T) {
	var ge *Error

	require.ErrorAs(t, NewInvalidInput(nil, "identity", "is required"), &ge)
	assert.Equal(t, CodeInvalidInput, ge.Code())
	assert.Equal(t, "is required", ge.Fields()["identity"])

	require.ErrorAs(t, NewInvalidInput(nil, "odd"), &ge)
	assert.Equal(t, CodeInvalidFormat, ge.Code())

	require.ErrorAs(t, NewInvalidFormat(), &ge)
	assert.Equal(t, "Invalid request body", ge.Msg())

	require.ErrorAs(t, NewInvalidFormat("frame is required"), &ge)
	assert.Equal(t, "frame is required", ge.Error())
}
