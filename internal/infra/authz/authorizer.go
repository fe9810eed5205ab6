package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"staybook/internal/app/identity"
	"staybook/internal/app/policies"
	"staybook/internal/domain/booking"
	"staybook/internal/domain/property"
)

const anonymous = "anonymous"

const rbacModel = `
[request_definition]
r = sub, act

[policy_definition]
p = sub, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = (p.sub == "*" || r.sub == p.sub) && r.act == p.act
`

// DefaultPolicy maps roles to the actions they may attempt. Ownership is
// checked separately.
var DefaultPolicy = [][]string{
	{"*", policies.ActionAvailability},
	{"*", policies.ActionQuote},

	{string(identity.RoleGuest), policies.ActionBookingCreate},
	{string(identity.RoleGuest), policies.ActionBookingRead},
	{string(identity.RoleGuest), policies.ActionBookingListMine},
	{string(identity.RoleGuest), policies.ActionBookingMarkPaid},
	{string(identity.RoleGuest), policies.ActionUploadProof},
	{string(identity.RoleGuest), policies.ActionBookingCancel},

	{string(identity.RoleHost), policies.ActionBookingRead},
	{string(identity.RoleHost), policies.ActionBookingListMine},
	{string(identity.RoleHost), policies.ActionBookingApprove},
	{string(identity.RoleHost), policies.ActionBookingCancel},
	{string(identity.RoleHost), policies.ActionBookingComplete},
	{string(identity.RoleHost), policies.ActionPropertyList},

	{string(identity.RoleAdmin), policies.ActionBookingRead},
	{string(identity.RoleAdmin), policies.ActionBookingListMine},
	{string(identity.RoleAdmin), policies.ActionBookingApprove},
	{string(identity.RoleAdmin), policies.ActionConfirmPayment},
	{string(identity.RoleAdmin), policies.ActionRejectPayment},
	{string(identity.RoleAdmin), policies.ActionBookingCancel},
	{string(identity.RoleAdmin), policies.ActionBookingComplete},
	{string(identity.RoleAdmin), policies.ActionPropertyList},
	{string(identity.RoleAdmin), policies.ActionSweepPayments},
}

type BookingLookup interface {
	Get(ctx context.Context, id booking.ID) (*booking.Booking, error)
}

// Authorizer combines a casbin role policy with ownership rules: guests act
// on their own bookings, hosts on bookings of their properties, admins on
// everything. It denies whenever it cannot reach a decision.
type Authorizer struct {
	enforcer   *casbin.Enforcer
	bookings   BookingLookup
	properties property.Reader
	logger     *slog.Logger
}

func New(bookings BookingLookup, properties property.Reader, rules [][]string, logger *slog.Logger) (*Authorizer, error) {
	if bookings == nil || properties == nil {
		return nil, errors.New("authz: lookups required")
	}
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("authz: model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("authz: enforcer: %w", err)
	}
	if rules == nil {
		rules = DefaultPolicy
	}
	if _, err := e.AddPolicies(rules); err != nil {
		return nil, fmt.Errorf("authz: load policy: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Authorizer{enforcer: e, bookings: bookings, properties: properties, logger: logger}, nil
}

func (a *Authorizer) Authorize(ctx context.Context, message any) error {
	guarded, ok := message.(policies.Guarded)
	if !ok {
		a.logger.ErrorContext(ctx, "authz: message without action", slog.String("type", fmt.Sprintf("%T", message)))
		return identity.ErrForbidden
	}
	action := guarded.Action()

	public, err := a.enforcer.Enforce(anonymous, action)
	if err != nil {
		return a.deny(ctx, action, err)
	}
	if public {
		return nil
	}

	p, ok := identity.FromContext(ctx)
	if !ok {
		return identity.ErrUnauthenticated
	}
	for _, role := range p.Roles {
		allowed, err := a.enforcer.Enforce(string(role), action)
		if err != nil {
			return a.deny(ctx, action, err)
		}
		if !allowed {
			continue
		}
		owns, err := a.owns(ctx, role, p, action, message)
		if err != nil {
			if errors.Is(err, booking.ErrNotFound) || errors.Is(err, property.ErrNotFound) {
				return err
			}
			return a.deny(ctx, action, err)
		}
		if owns {
			return nil
		}
	}
	a.logger.InfoContext(ctx, "authz: denied", slog.String("principal", p.ID), slog.String("action", action))
	return identity.ErrForbidden
}

func (a *Authorizer) owns(ctx context.Context, role identity.Role, p identity.Principal, action string, message any) (bool, error) {
	if role == identity.RoleAdmin {
		return true, nil
	}
	if scoped, ok := message.(policies.GuestScoped); ok && scoped.GuestRef() != p.ID {
		return false, nil
	}
	if scoped, ok := message.(policies.PropertyScoped); ok {
		if role != identity.RoleHost {
			return false, nil
		}
		prop, err := a.properties.Property(ctx, property.ID(scoped.PropertyRef()))
		if err != nil {
			return false, err
		}
		if prop.HostID != p.ID {
			return false, nil
		}
	}
	if scoped, ok := message.(policies.BookingScoped); ok {
		b, err := a.bookings.Get(ctx, booking.ID(scoped.BookingRef()))
		if err != nil {
			return false, err
		}
		switch role {
		case identity.RoleGuest:
			return b.GuestID == p.ID, nil
		case identity.RoleHost:
			// Hosts may only turn down a request; later cancellations go
			// through the guest or an admin.
			if action == policies.ActionBookingCancel && b.Status != booking.StatusPending {
				return false, nil
			}
			prop, err := a.properties.Property(ctx, b.PropertyID)
			if err != nil {
				return false, err
			}
			return prop.HostID == p.ID, nil
		default:
			return false, nil
		}
	}
	return true, nil
}

func (a *Authorizer) deny(ctx context.Context, action string, cause error) error {
	a.logger.ErrorContext(ctx, "authz: decision failed, denying", slog.String("action", action), slog.Any("error", cause))
	return identity.ErrForbidden
}
