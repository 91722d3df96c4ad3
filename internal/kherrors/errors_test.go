package kherrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap_PreservesCauseChain(t *testing.T) {
	cause := errors.New("connection refused")
	err := DataAccessError(cause, "failed to query change records")

	assert.Equal(t, "failed to query change records: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ErrorTypeDataAccess, GetType(err))
}

func TestWrap_NilCauseReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeAnalysis, "nothing happened"))
}

func TestIs_MatchesByType(t *testing.T) {
	err := AnalysisError(errors.New("boom"), "analysis failed")

	assert.True(t, errors.Is(err, New(ErrorTypeAnalysis, "")))
	assert.False(t, errors.Is(err, New(ErrorTypeTimeout, "")))
}

func TestWithContext(t *testing.T) {
	err := TimeoutError("enhanced analysis exceeded deadline").
		WithContext("document_id", "doc-1").
		WithContext("timeout_ms", 10000)

	require.NotNil(t, err.Context)
	assert.Equal(t, "doc-1", err.Context["document_id"])
	assert.Equal(t, 10000, err.Context["timeout_ms"])
}

func TestGetType_ForeignErrorIsInternal(t *testing.T) {
	assert.Equal(t, ErrorTypeInternal, GetType(fmt.Errorf("plain error")))
}

func TestIsDataAccess(t *testing.T) {
	assert.True(t, IsDataAccess(New(ErrorTypeDataAccess, "not found")))
	assert.False(t, IsDataAccess(New(ErrorTypeValidation, "bad input")))
	assert.False(t, IsDataAccess(errors.New("plain")))
}
