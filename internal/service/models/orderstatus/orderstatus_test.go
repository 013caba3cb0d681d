package orderstatus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus_Valid(t *testing.T) {
	for _, raw := range []string{"PENDING", "DELIVERED", "CANCELLED"} {
		status, err := ParseStatus(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, status.String())
	}
}

func TestParseStatus_Invalid(t *testing.T) {
	for _, raw := range []string{"", "pending", "SHIPPED", "DONE"} {
		_, err := ParseStatus(raw)
		assert.ErrorIs(t, err, ErrInvalidStatus)
	}
}
