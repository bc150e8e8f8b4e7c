package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name string
		err  error
		kind Kind
	}{
		{"validation", Validation("create folder", "", "name cannot be empty"), KindValidation},
		{"repository", Repository("insert folder", "Docs", cause), KindRepository},
		{"not found", Repository("get file", "abc", ErrNotFound), KindNotFound},
		{"transfer", Transfer("upload", "a.png", cause), KindTransfer},
		{"transform", Transform("transform", "a.png", cause), KindTransform},
		{"plain", cause, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(tt.err))
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.Equal(t, tt.kind, KindOf(wrapped))
		})
	}
}

func TestErrorMessageCarriesOperationAndTarget(t *testing.T) {
	err := Transfer("upload", "report.pdf", errors.New("connection reset"))
	assert.Equal(t, `upload "report.pdf": connection reset`, err.Error())

	err = Validation("rename", "", "name cannot be empty")
	assert.Equal(t, "rename: name cannot be empty", err.Error())
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(ErrNotFound))
	assert.True(t, IsNotFound(fmt.Errorf("lookup: %w", ErrNotFound)))
	assert.True(t, IsNotFound(Repository("get", "x", ErrNotFound)))
	assert.False(t, IsNotFound(Repository("get", "x", errors.New("timeout"))))
	assert.True(t, errors.Is(Repository("get", "x", ErrNotFound), ErrNotFound))
}
