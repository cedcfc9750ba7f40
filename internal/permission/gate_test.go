package permission

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mbazhenov/scoutbot/internal/scout"
	"github.com/mbazhenov/scoutbot/internal/store/memory"
)

func TestResolveOrdersTiers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewRecordStore()
	_, err := store.AddWhitelist(ctx, scout.WhitelistEntry{UserID: "listed", AddedBy: "owner-1"})
	require.NoError(t, err)

	gate := NewGate([]string{"owner-1"}, store, nil)

	tier, err := gate.Resolve(ctx, "owner-1")
	require.NoError(t, err)
	require.Equal(t, TierOwner, tier)

	tier, err = gate.Resolve(ctx, "listed")
	require.NoError(t, err)
	require.Equal(t, TierWhitelisted, tier)

	tier, err = gate.Resolve(ctx, "stranger")
	require.NoError(t, err)
	require.Equal(t, TierMember, tier)
}

func TestOwnerOutranksWhitelist(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewRecordStore()
	// An owner who is also whitelisted still resolves as owner.
	_, err := store.AddWhitelist(ctx, scout.WhitelistEntry{UserID: "owner-1", AddedBy: "owner-1"})
	require.NoError(t, err)

	gate := NewGate([]string{"owner-1"}, store, nil)
	tier, err := gate.Resolve(ctx, "owner-1")
	require.NoError(t, err)
	require.Equal(t, TierOwner, tier)
}

func TestAuthorize(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewRecordStore()
	_, err := store.AddWhitelist(ctx, scout.WhitelistEntry{UserID: "listed", AddedBy: "owner-1"})
	require.NoError(t, err)

	gate := NewGate([]string{"owner-1"}, store, nil)

	require.NoError(t, gate.Authorize(ctx, "owner-1", TierOwner))
	require.NoError(t, gate.Authorize(ctx, "owner-1", TierMember))
	require.NoError(t, gate.Authorize(ctx, "listed", TierWhitelisted))
	require.NoError(t, gate.Authorize(ctx, "stranger", TierMember))

	err = gate.Authorize(ctx, "listed", TierOwner)
	require.ErrorIs(t, err, scout.ErrPermissionDenied)

	err = gate.Authorize(ctx, "stranger", TierWhitelisted)
	require.ErrorIs(t, err, scout.ErrPermissionDenied)
}

type failingStore struct {
	scout.RecordStore
}

func (failingStore) IsWhitelisted(context.Context, string) (bool, error) {
	return false, errors.New("store offline")
}

func TestAuthorizeSurfacesLookupFailures(t *testing.T) {
	t.Parallel()

	gate := NewGate(nil, failingStore{}, nil)
	err := gate.Authorize(context.Background(), "someone", TierWhitelisted)
	require.Error(t, err)
	require.NotErrorIs(t, err, scout.ErrPermissionDenied,
		"a lookup failure is not a denial")
}

func TestWhitelistChangesApplyImmediately(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewRecordStore()
	gate := NewGate([]string{"owner-1"}, store, nil)

	err := gate.Authorize(ctx, "newcomer", TierWhitelisted)
	require.ErrorIs(t, err, scout.ErrPermissionDenied)

	_, err = store.AddWhitelist(ctx, scout.WhitelistEntry{UserID: "newcomer", AddedBy: "owner-1"})
	require.NoError(t, err)
	require.NoError(t, gate.Authorize(ctx, "newcomer", TierWhitelisted))

	removed, err := store.RemoveWhitelist(ctx, "newcomer")
	require.NoError(t, err)
	require.True(t, removed)
	err = gate.Authorize(ctx, "newcomer", TierWhitelisted)
	require.ErrorIs(t, err, scout.ErrPermissionDenied)
}
