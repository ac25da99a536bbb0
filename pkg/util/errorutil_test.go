package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainErrorKeepsDomainErrors(t *testing.T) {
	wrapped := fmt.Errorf("claim: %w", NewAlreadyClaimed(map[string]any{"work_order_id": int64(7)}))

	de := ToDomainError(wrapped)
	require.NotNil(t, de)
	assert.Equal(t, CodeAlreadyClaimed, de.Code)
	assert.Equal(t, http.StatusConflict, de.HTTPStatus)
	assert.Equal(t, int64(7), de.Details["work_order_id"])
}

func TestToDomainErrorWrapsUnknown(t *testing.T) {
	de := ToDomainError(errors.New("boom"))
	require.NotNil(t, de)
	assert.Equal(t, CodeInternal, de.Code)
	assert.Equal(t, http.StatusInternalServerError, de.HTTPStatus)
	assert.Nil(t, ToDomainError(nil))
}

func TestForbiddenHidesReason(t *testing.T) {
	err := NewForbidden()
	assert.True(t, HasCode(err, CodeForbidden))
	assert.Equal(t, "insufficient permission", err.Error())
}

func TestHasCode(t *testing.T) {
	assert.True(t, HasCode(NewValidationError("bad", nil), CodeValidation))
	assert.False(t, HasCode(NewValidationError("bad", nil), CodeNotFound))
	assert.False(t, HasCode(errors.New("plain"), CodeValidation))

	pf := NewPersistenceFailure(errors.New("db down"))
	assert.True(t, HasCode(pf, CodePersistence))
	assert.Contains(t, pf.Error(), "db down")
}
