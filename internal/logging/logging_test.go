package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	for _, opts := range []Options{
		{Verbosity: 0, Development: true},
		{Verbosity: 2, Development: false},
	} {
		log, flush, err := New(opts)
		require.NoError(t, err)
		require.NotNil(t, flush)

		assert.True(t, log.V(opts.Verbosity).Enabled())
		assert.False(t, log.V(opts.Verbosity+1).Enabled())
		log.V(opts.Verbosity).Info("logger ready", "verbosity", opts.Verbosity)
		flush()
	}
}
