package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "without underlying error",
			err:      New(CodeConfigError, "worker count must be positive"),
			expected: "[CONFIG_ERROR] worker count must be positive",
		},
		{
			name:     "with underlying error",
			err:      Wrap(CodeCollectiveError, "broadcast failed", errors.New("rank 2 missing")),
			expected: "[COLLECTIVE_ERROR] broadcast failed: rank 2 missing",
		},
		{
			name:     "formatted message",
			err:      Newf(CodeResourceExhausted, "limit %d exceeds %d", 10, 5),
			expected: "[RESOURCE_EXHAUSTED] limit 10 exceeds 5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := Wrap(CodeWorkerFailed, "marker panicked", underlying)

	assert.Equal(t, underlying, err.Unwrap())
	assert.True(t, errors.Is(err, underlying))
}

func TestAppError_Is(t *testing.T) {
	err1 := New(CodeConfigError, "error 1")
	err2 := New(CodeConfigError, "error 2")
	err3 := New(CodeCollectiveError, "error 3")

	assert.True(t, errors.Is(err1, err2))
	assert.False(t, errors.Is(err1, err3))
}

func TestCategoryHelpers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		want  bool
	}{
		{"config", New(CodeConfigError, "bad"), IsConfigError, true},
		{"wrapped config", fmt.Errorf("run: %w", New(CodeConfigError, "bad")), IsConfigError, true},
		{"config vs collective", New(CodeCollectiveError, "x"), IsConfigError, false},
		{"resource", ErrResourceExhausted, IsResourceError, true},
		{"collective", Wrap(CodeCollectiveError, "gather", errors.New("eof")), IsCollectiveError, true},
		{"worker", ErrWorkerFailed, IsWorkerFailed, true},
		{"database", ErrDatabaseError, IsDatabaseError, true},
		{"not found", ErrNotFound, IsNotFound, true},
		{"nil", nil, IsConfigError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.check(tt.err))
		})
	}
}

func TestGetErrorCode(t *testing.T) {
	assert.Equal(t, CodeConfigError, GetErrorCode(New(CodeConfigError, "x")))
	assert.Equal(t, CodeUploadError, GetErrorCode(fmt.Errorf("wrap: %w", Wrap(CodeUploadError, "upload", errors.New("inner")))))
	assert.Equal(t, CodeUnknown, GetErrorCode(errors.New("standard error")))
	assert.Equal(t, CodeUnknown, GetErrorCode(nil))
}

func TestGetErrorMessage(t *testing.T) {
	assert.Equal(t, "limit too small", GetErrorMessage(New(CodeConfigError, "limit too small")))
	assert.Equal(t, "standard error", GetErrorMessage(errors.New("standard error")))
	assert.Equal(t, "", GetErrorMessage(nil))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 2, ExitCode(ErrConfigError))
	assert.Equal(t, 3, ExitCode(ErrResourceExhausted))
	assert.Equal(t, 4, ExitCode(ErrCollectiveError))
	assert.Equal(t, 5, ExitCode(ErrWorkerFailed))
	assert.Equal(t, 1, ExitCode(errors.New("other")))
}
