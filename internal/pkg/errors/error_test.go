package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsInnerAppError(t *testing.T) {
	inner := New(ErrAssetNotFound, "asset 7")
	outer := Wrap(inner, ErrAssetStorageFailed, "finalize")

	assert.True(t, Is(outer, ErrAssetStorageFailed))
	assert.Equal(t, "asset 7", inner.Details, "wrapping must not mutate the inner error")

	var target *AppError
	assert.True(t, errors.As(outer.Unwrap(), &target))
	assert.Equal(t, ErrAssetNotFound, target.Code)
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrInternalServer))
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		notFound   bool
		conflict   bool
		validation bool
		storage    bool
	}{
		{"asset not found", New(ErrAssetNotFound), true, false, false, false},
		{"file missing", New(ErrAssetFileMissing), true, false, false, false},
		{"duplicate link", New(ErrLinkExists), false, true, false, false},
		{"tenant mismatch", New(ErrLinkTenantMismatch), false, false, true, false},
		{"extension", New(ErrAssetInvalidExtension), false, false, true, false},
		{"storage", Wrap(fmt.Errorf("disk full"), ErrAssetStorageFailed), false, false, false, true},
		{"wrapped with fmt", fmt.Errorf("ctx: %w", New(ErrDeviceNotFound)), true, false, false, false},
		{"plain error", errors.New("boom"), false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.notFound, IsNotFound(tt.err))
			assert.Equal(t, tt.conflict, IsConflict(tt.err))
			assert.Equal(t, tt.validation, IsValidation(tt.err))
			assert.Equal(t, tt.storage, IsStorage(tt.err))
		})
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, GetHTTPStatus(ErrAssetStorageFailed))
	assert.Equal(t, http.StatusConflict, GetHTTPStatus(ErrLinkExists))
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(999999))
	assert.Equal(t, ErrInternalServer, ExtractCode(errors.New("x")))
}

func TestFormatError(t *testing.T) {
	assert.Equal(t, "Asset not found", FormatError(ErrAssetNotFound))
	assert.Equal(t, "Asset not found: id 3", FormatError(ErrAssetNotFound, "id 3"))
	assert.Equal(t, "[3000] Asset not found: id 3", New(ErrAssetNotFound, "id 3").Error())
}
