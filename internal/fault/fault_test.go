package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf_Wrapped(t *testing.T) {
	base := StageFailed("verify", errors.New("missing out.md"))
	wrapped := fmt.Errorf("run aborted: %w", base)

	assert.Equal(t, CodeStageFailed, CodeOf(wrapped))
	assert.True(t, IsStageFailed(wrapped))
	assert.False(t, IsNotFound(wrapped))
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
}

func TestStageFailed_MessageAndDetails(t *testing.T) {
	err := StageFailed("execute", errors.New("exit 2"))
	assert.Contains(t, err.Error(), "STAGE_FAILED")
	assert.Contains(t, err.Error(), "execute")
	assert.Contains(t, err.Error(), "exit 2")
	assert.Equal(t, "execute", err.Details["stage"])
}

func TestValidation_NoCause(t *testing.T) {
	err := Validation("missing --input")
	assert.True(t, IsValidation(err))
	assert.Equal(t, "VALIDATION: missing --input", err.Error())
	assert.Nil(t, errors.Unwrap(err))
}
