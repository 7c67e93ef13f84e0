package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunReturnsDatabaseError(t *testing.T) {
	t.Setenv("DATABASE_ENABLED", "true")
	t.Setenv("DATABASE_HOST", "127.0.0.1")
	t.Setenv("DATABASE_PORT", "1")
	t.Setenv("DATABASE_CONNECT_TIMEOUT", "1s")

	err := run()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to database")
}
