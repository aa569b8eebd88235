package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCode_HTTPStatus(t *testing.T) {
	cases := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationUnknownPlan, http.StatusBadRequest},
		{ErrCodeValidationMalformedEvent, http.StatusBadRequest},
		{ErrCodeValidationMissingPaymentID, http.StatusBadRequest},
		{ErrCodeNotFoundPayment, http.StatusNotFound},
		{ErrCodeNotFoundSubscription, http.StatusNotFound},
		{ErrCodeConflictPaymentTerminal, http.StatusConflict},
		{ErrCodeUpstreamProvider, http.StatusBadGateway},
		{ErrCodeUpstreamUnavailable, http.StatusBadGateway},
		{ErrCodeInternalDB, http.StatusInternalServerError},
		{ErrorCode("something_new"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			assert.Equal(t, tc.want, tc.code.HTTPStatus())
		})
	}
}

// Transient decides whether a webhook delivery is acknowledged. Permanent
// classes must ack (the event can never apply); transient classes must not
// (the provider redelivers and the retry can succeed).
func TestErrorCode_Transient(t *testing.T) {
	transient := []ErrorCode{
		ErrCodeInternalDB,
		ErrCodeInternalUnexpected,
		ErrCodeUpstreamProvider,
		ErrCodeUpstreamUnavailable,
		ErrCodeUpstreamRateLimited,
	}
	for _, c := range transient {
		assert.True(t, c.Transient(), "%s must withhold acknowledgment", c)
	}

	permanent := []ErrorCode{
		ErrCodeValidationUnknownPlan,
		ErrCodeValidationMalformedEvent,
		ErrCodeValidationMissingPaymentID,
		ErrCodeNotFoundPayment,
		ErrCodeConflictPaymentTerminal,
	}
	for _, c := range permanent {
		assert.False(t, c.Transient(), "%s must be acknowledged and dropped", c)
	}
}

func TestAppError_Format(t *testing.T) {
	err := NewAppError(ErrCodeNotFoundPayment, "payment pay_1 not found", nil)
	assert.Equal(t, "not_found_payment: payment pay_1 not found", err.Error())
	assert.Equal(t, http.StatusNotFound, err.HTTPStatus())
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewAppError(ErrCodeInternalDB, "query failed", cause)

	assert.ErrorIs(t, err, cause)
}

func TestCodeOf(t *testing.T) {
	appErr := NewAppError(ErrCodeConflictPaymentTerminal, "already failed", nil)
	assert.Equal(t, ErrCodeConflictPaymentTerminal, CodeOf(appErr))

	wrapped := fmt.Errorf("applying payment: %w", appErr)
	assert.Equal(t, ErrCodeConflictPaymentTerminal, CodeOf(wrapped))

	assert.Equal(t, ErrCodeInternalUnexpected, CodeOf(errors.New("plain")))
}
