package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"giveaway/internal/giveaway"
)

func TestSimulateNodesAgree(t *testing.T) {
	results, err := simulate(context.Background(), []string{"A", "B", "C", "D"}, 4, 150*time.Millisecond, 150*time.Millisecond, "org")
	require.NoError(t, err)
	require.Len(t, results, 4)

	for _, r := range results {
		assert.Equal(t, results[0].Winner, r.Winner)
		assert.Len(t, r.Reveals, 4)
		assert.True(t, giveaway.VerifyResult(r, "org"))
	}
}

func TestSimulateRejectsBadInput(t *testing.T) {
	_, err := simulate(context.Background(), []string{"A"}, 0, time.Second, time.Second, "org")
	assert.Error(t, err)

	_, err = simulate(context.Background(), nil, 1, time.Second, time.Second, "org")
	assert.ErrorIs(t, err, giveaway.ErrEmptyParticipants)
}
