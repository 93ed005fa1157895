package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aussiebroadwan/twofa/internal/twofa/domain"
	"github.com/stretchr/testify/require"
)

func TestHousekeepingSweep(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.TempTokens.Put(ctx, "a", domain.TempLoginToken{AccountID: "1"}))
	require.NoError(t, h.SetupTokens.Put(ctx, "b", domain.SetupToken{AccountID: "1"}))

	hk := NewHousekeepingService(slog.New(slog.NewTextHandler(io.Discard, nil)), time.Hour, h.TempTokens, h.SetupTokens)
	require.Zero(t, hk.Sweep(ctx))

	h.Clock.Advance(6 * time.Minute)
	require.Equal(t, 1, hk.Sweep(ctx))

	h.Clock.Advance(10 * time.Minute)
	require.Equal(t, 1, hk.Sweep(ctx))

	st, err := h.SetupTokens.Stats(ctx)
	require.NoError(t, err)
	require.Zero(t, st.Size)
}

func TestHousekeepingStartStop(t *testing.T) {
	h := newHarness(t)
	hk := NewHousekeepingService(nil, 0, h.TempTokens)
	require.Equal(t, time.Minute, hk.Interval)

	hk.Start()
	hk.Stop()
}
