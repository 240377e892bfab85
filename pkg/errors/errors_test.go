package errors

import (
	stdErrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	typed := Clone(ErrNotFound, "学生不存在")
	got := FromError(typed)
	require.Same(t, typed, got)
	assert.Equal(t, http.StatusNotFound, got.Status)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	got := FromError(stdErrors.New("boom"))
	require.NotNil(t, got)
	assert.Equal(t, ErrInternal.Code, got.Code)
	assert.Contains(t, got.Error(), "boom")
}

func TestCloneMatchesOriginalWithErrorsIs(t *testing.T) {
	clone := Clonef(ErrForbidden, "无权访问%s", "该证书")
	assert.Equal(t, "无权访问该证书", clone.Message)
	assert.True(t, stdErrors.Is(clone, ErrForbidden))
	assert.False(t, stdErrors.Is(clone, ErrNotFound))
	assert.Equal(t, "拒绝访问", ErrForbidden.Message)
}

func TestWithDetails(t *testing.T) {
	details := map[string]string{"name": "名称为必填字段"}
	got := WithDetails(ErrValidation, details)
	assert.Equal(t, details, got.Details)
	assert.Nil(t, ErrValidation.Details)
}
