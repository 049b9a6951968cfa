package liberr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	err := New(CategoryBackend, SeverityError, "something broke")
	assert.Equal(t, "backend (error): something broke", err.Error())

	wrapped := Wrap(errors.New("dial tcp: refused"), CategoryBackend, SeverityError, "something broke")
	assert.Contains(t, wrapped.Error(), "dial tcp: refused")
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(cause, CategoryStorage, SeverityWarning, "lookup failed")
	assert.True(t, errors.Is(err, cause))
}

func TestCategoryThroughWrapping(t *testing.T) {
	err := fmt.Errorf("context: %w", CollectionNotFound("calibre", "tag:sci-fi"))
	assert.True(t, IsCategory(err, CategoryConfig))
	assert.Equal(t, CategoryConfig, GetCategory(err))
}

func TestGetCategoryForeignError(t *testing.T) {
	assert.Equal(t, CategoryInternal, GetCategory(errors.New("plain")))
}

func TestRetryability(t *testing.T) {
	assert.True(t, IsRetryable(BackendUnavailable("zotero", errors.New("timeout"))))
	assert.True(t, IsRetryable(DeliveryFailed("user@example.com", errors.New("smtp 421"))))
	assert.False(t, IsRetryable(CollectionNotFound("calibre", "tag:none")))
	assert.False(t, IsRetryable(EmptyPool("nothing left")))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestConstructorSeverities(t *testing.T) {
	assert.Equal(t, SeverityFatal, EmptyPool("x").Severity)
	assert.Equal(t, SeverityFatal, CommitFailed(errors.New("x")).Severity)
	assert.Equal(t, SeverityWarning, DeliveryFailed("a@b", errors.New("x")).Severity)
}

func TestWithContext(t *testing.T) {
	err := New(CategoryMail, SeverityError, "boom").WithContext("recipient", "a@b")
	assert.Equal(t, "a@b", err.Context["recipient"])
}
