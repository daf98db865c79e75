package apns

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusString(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("invalid token", StatusInvalidToken.String())
	assert.Equal("status(42)", Status(42).String())
}

func TestStatusValid(t *testing.T) {
	assert := assert.New(t)

	assert.True(StatusNoError.valid())
	assert.True(StatusUnknown.valid())
	assert.False(Status(100).valid())
}

func TestAPSErrorIs(t *testing.T) {
	assert := assert.New(t)

	e1 := &APSError{Status: StatusInvalidToken, RequestID: 1}
	e2 := &APSError{Status: StatusInvalidToken, RequestID: 2}
	e3 := &APSError{Status: StatusProcessingError, RequestID: 1}

	assert.True(errors.Is(e1, e2))
	assert.False(errors.Is(e1, e3))
}
