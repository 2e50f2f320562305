package authorization

import (
	"context"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rovamart/payguard/internal/principal"
)

func setupService(t *testing.T) Service {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	enforcer, err := NewEnforcer(db)
	require.NoError(t, err)

	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})
}

func actor(role string) principal.Principal {
	return principal.Principal{ID: "u-" + role, Role: role}
}

func TestAuthorizeRoleMatrix(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	type check struct {
		object string
		action string
	}
	allChecks := []check{
		{ObjectOTP, ActionOTPSubmit},
		{ObjectOTP, ActionOTPTrigger},
		{ObjectPayout, ActionPayoutUnlock},
		{ObjectPhoto, ActionPhotoApprove},
		{ObjectPayout, ActionPayoutIntent},
		{ObjectPayout, ActionPayoutConfirm},
		{ObjectPayout, ActionPayoutReject},
		{ObjectEligibility, ActionEligibilityView},
		{ObjectPayout, ActionPayoutCheck},
		{ObjectPayout, ActionPayoutLockAll},
		{ObjectPayout, ActionPayoutViewActions},
	}

	denied := map[string]map[check]bool{
		principal.RoleGM: {},
		principal.RoleFC: {
			{ObjectPayout, ActionPayoutUnlock}: true,
		},
		principal.RoleCEO: {
			{ObjectPayout, ActionPayoutUnlock}: true,
			{ObjectPayout, ActionPayoutReject}: true,
		},
		principal.RoleAccountant: {
			{ObjectOTP, ActionOTPSubmit}:          true,
			{ObjectOTP, ActionOTPTrigger}:         true,
			{ObjectPayout, ActionPayoutUnlock}:    true,
			{ObjectPhoto, ActionPhotoApprove}:     true,
			{ObjectPayout, ActionPayoutIntent}:    true,
			{ObjectPayout, ActionPayoutCheck}:     true,
			{ObjectPayout, ActionPayoutLockAll}:   true,
		},
	}

	for role, deny := range denied {
		for _, c := range allChecks {
			err := svc.Authorize(ctx, actor(role), c.object, c.action)
			if deny[c] {
				assert.ErrorIs(t, err, ErrForbidden, "%s should be denied %s on %s", role, c.action, c.object)
			} else {
				assert.NoError(t, err, "%s should be allowed %s on %s", role, c.action, c.object)
			}
		}
	}
}

func TestAuthorizeOnlyGMUnlocks(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	require.NoError(t, svc.Authorize(ctx, actor(principal.RoleGM), ObjectPayout, ActionPayoutUnlock))
	for _, role := range []string{principal.RoleFC, principal.RoleCEO, principal.RoleAccountant} {
		assert.ErrorIs(t, svc.Authorize(ctx, actor(role), ObjectPayout, ActionPayoutUnlock), ErrForbidden)
	}
}

func TestAuthorizeRejectsInvalidActor(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Authorize(ctx, principal.Principal{}, ObjectPayout, ActionPayoutConfirm), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, principal.Principal{ID: "u-1"}, ObjectPayout, ActionPayoutConfirm), ErrInvalidActor)

	// An unrecognized role is a valid principal with no grants.
	assert.ErrorIs(t, svc.Authorize(ctx, principal.Principal{ID: "u-1", Role: "intern"}, ObjectPayout, ActionPayoutConfirm), ErrForbidden)
}

func TestAuthorizeRejectsBlankObjectOrAction(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()
	gm := actor(principal.RoleGM)

	assert.ErrorIs(t, svc.Authorize(ctx, gm, "  ", ActionPayoutConfirm), ErrInvalidObject)
	assert.ErrorIs(t, svc.Authorize(ctx, gm, ObjectPayout, ""), ErrInvalidAction)
}

func TestAuthorizeUnknownPairDenied(t *testing.T) {
	svc := setupService(t)

	err := svc.Authorize(context.Background(), actor(principal.RoleGM), ObjectPayout, "payout.delete")
	assert.ErrorIs(t, err, ErrForbidden)
}
