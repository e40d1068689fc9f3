package xerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap_KeepsCause(t *testing.T) {
	root := errors.New("connection refused")
	err := Wrap(root, AdapterError, "ledger error when submitting")

	assert.True(t, errors.Is(err, root))
	assert.True(t, Is(err, AdapterError))
	assert.False(t, Is(err, ValidationError))
	assert.Equal(t, "ledger error when submitting: connection refused", Message(err))
	assert.Contains(t, err.Error(), "ErrCode:1002")
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, OK, CodeOf(nil))
	assert.Equal(t, ServerCommonError, CodeOf(errors.New("boom")))
	assert.Equal(t, ConfigurationError, CodeOf(New(ConfigurationError, "bad adapter")))

	// fmt 包一层之后依然能识别
	wrapped := fmt.Errorf("pass aborted: %w", NewErrCode(StatusConflict))
	assert.Equal(t, StatusConflict, CodeOf(wrapped))
	assert.Equal(t, "状态已变更", Message(wrapped.(interface{ Unwrap() error }).Unwrap()))
}

func TestWrap_NilIsNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, DbError, "x"))
	assert.Equal(t, "", Message(nil))
	assert.Equal(t, "plain", Message(errors.New("plain")))
}

func TestIs_WalksCauseChain(t *testing.T) {
	busy := Wrap(errors.New("lock held"), ResourceBusy, "lock funding account")
	err := Wrap(busy, AdapterError, "unable to create channel account")

	assert.True(t, Is(err, AdapterError))
	assert.True(t, Is(err, ResourceBusy))
	assert.True(t, Is(fmt.Errorf("pass: %w", err), ResourceBusy))
	assert.False(t, Is(err, StatusConflict))
	assert.False(t, Is(errors.New("plain"), ResourceBusy))
	assert.Equal(t, AdapterError, CodeOf(err))
}

func TestMessage_NestedCodeErrorHasNoPrefix(t *testing.T) {
	inner := Wrap(errors.New("timeout"), ResourceBusy, "lock funding account")
	err := Wrap(inner, AdapterError, "unable to create channel account")

	assert.Equal(t, "unable to create channel account: lock funding account: timeout", Message(err))
	assert.NotContains(t, Message(err), "ErrCode")
}
