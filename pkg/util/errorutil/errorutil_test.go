package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

func TestToDomainError_PassesThroughWrapped(t *testing.T) {
	err := fmt.Errorf("load timer: %w", NewNotFound("ticket sla", map[string]any{"ticket_id": "t-1"}))

	de := ToDomainError(err)
	assert.Equal(t, CodeNotFound, de.Code)
	assert.Equal(t, http.StatusNotFound, de.HTTPStatus)
	assert.Equal(t, "t-1", de.Details["ticket_id"])
	assert.True(t, IsNotFound(err))
	assert.False(t, IsConflict(err))
}

func TestToDomainError_NoRows(t *testing.T) {
	de := ToDomainError(pgx.ErrNoRows)
	assert.Equal(t, CodeNotFound, de.Code)
}

func TestToDomainError_Unknown(t *testing.T) {
	de := ToDomainError(errors.New("boom"))
	assert.Equal(t, CodeInternal, de.Code)
	assert.Equal(t, http.StatusInternalServerError, de.HTTPStatus)
	assert.Nil(t, ToDomainError(nil))
}

func TestDependencyUnavailable_Unwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewDependencyUnavailable("webhook", cause)
	assert.ErrorIs(t, err, cause)
	assert.True(t, HasCode(err, CodeDependencyUnavailable))
	assert.Contains(t, err.Error(), "webhook unavailable")
}
