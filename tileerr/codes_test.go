package tileerr

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesCode(t *testing.T) {
	err := Wrapf(io.EOF, CodeArchiveCorrupt, "reading %s", "tiles")
	wrapped := fmt.Errorf("scan: %w", err)

	assert.True(t, errors.Is(wrapped, ErrArchiveCorrupt))
	assert.False(t, errors.Is(wrapped, ErrArchiveUnavailable))
	assert.True(t, errors.Is(wrapped, io.EOF))
	assert.Equal(t, "reading tiles: EOF", err.Error())
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, CodeArchiveCorrupt, "x"))
	assert.Nil(t, Wrapf(nil, CodeArchiveCorrupt, "x %d", 1))
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusOK, StatusOf(nil))
	assert.Equal(t, http.StatusBadRequest, StatusOf(Newf(CodeInvalidCoordinate, "row %d", 9)))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(Wrap(io.EOF, CodeMalformedCoordinate, "segment")))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(fmt.Errorf("x: %w", ErrArchiveUnavailable)))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("boom")))
}

func TestCodeOf(t *testing.T) {
	c, ok := CodeOf(fmt.Errorf("put: %w", New(CodeSinkWriteFailure, "denied")))
	assert.True(t, ok)
	assert.Equal(t, CodeSinkWriteFailure, c)
	assert.Equal(t, "SinkWriteFailure", c.String())

	_, ok = CodeOf(errors.New("plain"))
	assert.False(t, ok)
}
