package main

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
)

// Validates the dependency graph without opening connections or starting
// the server, so a provider/consumer type mismatch fails here instead of
// at deploy time.
func TestDependencyGraphResolves(t *testing.T) {
	require.NoError(t, fx.ValidateApp(modules()))
}
