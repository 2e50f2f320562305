package authorization

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rovamart/payguard/internal/principal"
)

//go:embed model.conf
var modelText string

const (
	ObjectOTP         = "otp"
	ObjectPayout      = "payout"
	ObjectPhoto       = "photo"
	ObjectEligibility = "eligibility"
)

const (
	ActionOTPSubmit  = "otp.submit"
	ActionOTPTrigger = "otp.trigger"

	ActionPayoutUnlock      = "payout.unlock"
	ActionPayoutIntent      = "payout.intent"
	ActionPayoutConfirm     = "payout.confirm"
	ActionPayoutReject      = "payout.reject"
	ActionPayoutCheck       = "payout.check"
	ActionPayoutLockAll     = "payout.lock_all"
	ActionPayoutViewActions = "payout.view_actions"

	ActionPhotoApprove = "photo.approve"

	ActionEligibilityView = "eligibility.view"
)

var (
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrForbidden     = errors.New("forbidden")
)

type Service interface {
	Authorize(ctx context.Context, actor principal.Principal, object string, action string) error
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

// Authorize enforces the actor's role against the object/action pair.
// Roles come from the gateway headers; the subject is the role itself.
func (s *ServiceImpl) Authorize(ctx context.Context, actor principal.Principal, object string, action string) error {
	if !actor.Valid() {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject := roleSubject(actor.Role)
	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Warn("authorization denied",
			zap.String("actor_id", actor.ID),
			zap.String("role", actor.Role),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

func roleSubject(role string) string {
	return fmt.Sprintf("role:%s", strings.ToLower(strings.TrimSpace(role)))
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// GM: full compliance surface including manual unlock.
		{"role:gm", ObjectOTP, ActionOTPSubmit},
		{"role:gm", ObjectOTP, ActionOTPTrigger},
		{"role:gm", ObjectPayout, ActionPayoutUnlock},
		{"role:gm", ObjectPhoto, ActionPhotoApprove},
		{"role:gm", ObjectPayout, ActionPayoutIntent},
		{"role:gm", ObjectPayout, ActionPayoutConfirm},
		{"role:gm", ObjectPayout, ActionPayoutReject},
		{"role:gm", ObjectEligibility, ActionEligibilityView},
		{"role:gm", ObjectPayout, ActionPayoutCheck},
		{"role:gm", ObjectPayout, ActionPayoutLockAll},
		{"role:gm", ObjectPayout, ActionPayoutViewActions},

		// FC: day-to-day compliance review, no unlock.
		{"role:fc", ObjectOTP, ActionOTPSubmit},
		{"role:fc", ObjectOTP, ActionOTPTrigger},
		{"role:fc", ObjectPhoto, ActionPhotoApprove},
		{"role:fc", ObjectPayout, ActionPayoutIntent},
		{"role:fc", ObjectPayout, ActionPayoutConfirm},
		{"role:fc", ObjectPayout, ActionPayoutReject},
		{"role:fc", ObjectEligibility, ActionEligibilityView},
		{"role:fc", ObjectPayout, ActionPayoutCheck},
		{"role:fc", ObjectPayout, ActionPayoutLockAll},
		{"role:fc", ObjectPayout, ActionPayoutViewActions},

		// CEO: oversight, no unlock and no reject.
		{"role:ceo", ObjectOTP, ActionOTPSubmit},
		{"role:ceo", ObjectOTP, ActionOTPTrigger},
		{"role:ceo", ObjectPhoto, ActionPhotoApprove},
		{"role:ceo", ObjectPayout, ActionPayoutIntent},
		{"role:ceo", ObjectPayout, ActionPayoutConfirm},
		{"role:ceo", ObjectEligibility, ActionEligibilityView},
		{"role:ceo", ObjectPayout, ActionPayoutCheck},
		{"role:ceo", ObjectPayout, ActionPayoutLockAll},
		{"role:ceo", ObjectPayout, ActionPayoutViewActions},

		// Accountant: settlement only.
		{"role:accountant", ObjectPayout, ActionPayoutConfirm},
		{"role:accountant", ObjectPayout, ActionPayoutReject},
		{"role:accountant", ObjectEligibility, ActionEligibilityView},
		{"role:accountant", ObjectPayout, ActionPayoutViewActions},
	}

	for _, policy := range policies {
		if len(policy) < 3 {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
