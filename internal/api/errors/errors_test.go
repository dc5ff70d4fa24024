package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/skyline-ota/releasectl/internal/domainerrors"
)

func TestFromDomainError_MapsSentinelsToCodes(t *testing.T) {
	cases := []struct {
		err  error
		code ErrorCode
	}{
		{fmt.Errorf("%w: release missing", domainerrors.ErrNotFound), CodeNotFound},
		{fmt.Errorf("%w: bad input", domainerrors.ErrBadRequest), CodeValidationError},
		{fmt.Errorf("%w: duplicate", domainerrors.ErrConflict), CodeConflict},
		{fmt.Errorf("%w: upstream down", domainerrors.ErrDependencyFailure), CodeDependencyFailure},
		{errors.New("unrecognized failure"), CodeInternalError},
	}

	for _, c := range cases {
		got := FromDomainError(c.err)
		assert.Equal(t, c.code, got.Code, c.err.Error())
	}
}

func TestAPIError_StatusCode(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, NotFoundError("release").StatusCode())
	assert.Equal(t, http.StatusBadRequest, ValidationError("bad").StatusCode())
	assert.Equal(t, http.StatusConflict, ConflictError("dup").StatusCode())
	assert.Equal(t, http.StatusBadGateway, DependencyFailureError("upstream").StatusCode())
	assert.Equal(t, http.StatusInternalServerError, InternalError("boom").StatusCode())
	assert.Equal(t, http.StatusTooManyRequests, RateLimitError().StatusCode())
}

func TestAPIError_WithRequestID(t *testing.T) {
	err := NewAPIError(CodeInternalError, "boom").WithRequestID("req-123")
	assert.Equal(t, "req-123", err.RequestID)
}
