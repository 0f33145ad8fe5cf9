package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandDefaults(t *testing.T) {
	cmd := newRootCommand()

	delay, err := cmd.Flags().GetDuration("delay")
	require.NoError(t, err)
	assert.Equal(t, 800*time.Millisecond, delay)

	p, err := cmd.Flags().GetString("persona")
	require.NoError(t, err)
	assert.Equal(t, "product-coach", p)
}

func TestRunRejectsBadOptions(t *testing.T) {
	ctx := context.Background()

	err := run(ctx, &options{delay: 0, personaID: "product-coach", logLevel: "info"})
	assert.ErrorContains(t, err, "--delay must be positive")

	err = run(ctx, &options{delay: time.Second, personaID: "nobody", logLevel: "info"})
	assert.ErrorContains(t, err, "unknown persona")
}
