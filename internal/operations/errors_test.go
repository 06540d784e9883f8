package operations

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_newError(t *testing.T) {
	req := require.New(t)

	t.Run("test error wrapping", func(t *testing.T) {
		err := newError(errUnknownOperation, "")
		req.NotNil(err)
		req.Implements((*error)(nil), err)

		req.Equal(errUnknownOperation, err.err)
		req.True(errors.Is(err, errUnknownOperation))
		req.Equal("unknown operation", err.Error())
	})

	t.Run("test error wrapping with context", func(t *testing.T) {
		err := newError(errInvalidFormat, "column %s: %s", "Code", "invalid syntax")
		req.NotNil(err)

		req.True(errors.Is(err, errInvalidFormat))
		req.False(errors.Is(err, errMissingKey))
		req.Equal("invalid format: column Code: invalid syntax", err.Error())
	})
}
