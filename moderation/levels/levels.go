// Permission-level comparison for moderation actions.
//
// A "level" is an opaque number assigned to every community member by an
// external policy (role mapping, staff lists, etc). This package only owns
// the comparison contract: whether one member's level lets them act on
// another member, and whether a resolved config grants a named permission.
package levels

import (
	"context"
)

// Resolves level and privilege information for community members. Backed by
// the hosting process (platform API, cached member state, ...).
type Resolver interface {
	// Level returns the effective permission level for a user within a community.
	Level(communityID, userID string) int64
	// IsOwnerOrAdmin reports whether the user owns the community or holds an
	// administrative capability there.
	IsOwnerOrAdmin(communityID, userID string) bool
	// IsSelf reports whether the user is the bot's own account.
	IsSelf(userID string) bool
}

type ActOnOpts struct {
	// Permit acting on targets with a level equal to the actor's.
	AllowSameLevel bool
	// Permit acting on community owners and administrators.
	AllowAdmins bool
}

// CanActOn decides whether actor may take a moderation action against target
// within the given community. Fails closed: the bot itself can never be a
// target, and owners/admins are protected unless explicitly allowed.
func CanActOn(r Resolver, communityID, actorID, targetID string, opts ActOnOpts) bool {
	if r.IsSelf(targetID) {
		return false
	}
	if r.IsOwnerOrAdmin(communityID, targetID) && !opts.AllowAdmins {
		return false
	}
	actorLevel := r.Level(communityID, actorID)
	targetLevel := r.Level(communityID, targetID)
	if opts.AllowSameLevel {
		return actorLevel >= targetLevel
	}
	return actorLevel > targetLevel
}

// Context for matching config overrides: which member, where.
type MatchParams struct {
	CommunityID string
	UserID      string
	ChannelID   string
	Level       int64
}

// A resolved view of community config for one match context. Resolution
// itself (override merging, validation) happens outside this module.
type ConfigSnapshot interface {
	PermissionGranted(key string) bool
}

type ConfigResolver interface {
	GetMatchingConfig(ctx context.Context, params MatchParams) (ConfigSnapshot, error)
}

// HasPermission resolves the effective config for the match context and
// checks the named permission key. Pure with respect to the snapshot.
func HasPermission(ctx context.Context, resolver ConfigResolver, key string, params MatchParams) (bool, error) {
	cfg, err := resolver.GetMatchingConfig(ctx, params)
	if err != nil {
		return false, err
	}
	return cfg.PermissionGranted(key), nil
}
