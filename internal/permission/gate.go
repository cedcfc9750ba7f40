// Package permission resolves caller tiers and gates command access.
package permission

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mbazhenov/scoutbot/internal/scout"
)

// Tier orders the access levels. Higher tiers satisfy lower requirements.
type Tier int

const (
	TierMember Tier = iota
	TierWhitelisted
	TierOwner
)

// String implements fmt.Stringer for logs and status output.
func (t Tier) String() string {
	switch t {
	case TierOwner:
		return "owner"
	case TierWhitelisted:
		return "whitelisted"
	default:
		return "member"
	}
}

// Gate decides what a caller may do. Owners come from static configuration
// and bypass the whitelist store entirely; everyone else is looked up per
// call so whitelist changes apply immediately, without restarts or caches.
type Gate struct {
	owners map[string]struct{}
	store  scout.RecordStore
	logger *zap.Logger
}

// NewGate constructs a Gate. ownerIDs may be empty, which leaves only
// whitelist-tier access available.
func NewGate(ownerIDs []string, store scout.RecordStore, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	owners := make(map[string]struct{}, len(ownerIDs))
	for _, id := range ownerIDs {
		if id != "" {
			owners[id] = struct{}{}
		}
	}
	return &Gate{owners: owners, store: store, logger: logger}
}

// Resolve returns the highest tier the caller holds.
func (g *Gate) Resolve(ctx context.Context, userID string) (Tier, error) {
	if _, ok := g.owners[userID]; ok {
		return TierOwner, nil
	}
	listed, err := g.store.IsWhitelisted(ctx, userID)
	if err != nil {
		return TierMember, fmt.Errorf("whitelist lookup: %w", err)
	}
	if listed {
		return TierWhitelisted, nil
	}
	return TierMember, nil
}

// Authorize checks the caller against a required tier. A denial returns
// scout.ErrPermissionDenied; lookup failures are reported as-is so callers
// can distinguish "no" from "could not decide".
func (g *Gate) Authorize(ctx context.Context, userID string, required Tier) error {
	tier, err := g.Resolve(ctx, userID)
	if err != nil {
		return err
	}
	if tier < required {
		g.logger.Debug("access denied",
			zap.String("user_id", userID),
			zap.Stringer("tier", tier),
			zap.Stringer("required", required),
		)
		return fmt.Errorf("user %s holds %s, needs %s: %w",
			userID, tier, required, scout.ErrPermissionDenied)
	}
	return nil
}

// IsOwner reports whether the caller is a configured owner.
func (g *Gate) IsOwner(userID string) bool {
	_, ok := g.owners[userID]
	return ok
}
