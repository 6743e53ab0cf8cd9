package tenancy

import (
	"slices"

	"github.com/google/uuid"

	"github.com/sppg-platform/budget-engine/pkg/enums"
	pkgerrors "github.com/sppg-platform/budget-engine/pkg/errors"
	"github.com/sppg-platform/budget-engine/pkg/outbox"
)

var (
	// ManagerRoles head or administer a tenant.
	ManagerRoles = []enums.MemberRole{enums.MemberRoleHead, enums.MemberRoleAdmin}
	// FinanceRoles may write to the budget ledger.
	FinanceRoles = []enums.MemberRole{enums.MemberRoleHead, enums.MemberRoleAdmin, enums.MemberRoleAccountant}
	// ProcurementRoles may raise approval requests and payables.
	ProcurementRoles = []enums.MemberRole{
		enums.MemberRoleHead,
		enums.MemberRoleAdmin,
		enums.MemberRoleAccountant,
		enums.MemberRoleProcurement,
	}
)

// Actor is the caller every core operation runs on behalf of.
type Actor struct {
	TenantID uuid.UUID
	UserID   uuid.UUID
	Role     enums.MemberRole
}

// Validate rejects actors without a usable identity.
func (a Actor) Validate() error {
	if a.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !a.Role.IsValid() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "role missing")
	}
	if a.TenantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeForbidden, "tenant context missing")
	}
	return nil
}

// HasRole reports whether the actor holds one of roles.
func (a Actor) HasRole(roles ...enums.MemberRole) bool {
	return slices.Contains(roles, a.Role)
}

// Require validates the actor and checks it holds one of roles.
func (a Actor) Require(roles ...enums.MemberRole) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if len(roles) > 0 && !a.HasRole(roles...) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "role not permitted for this operation")
	}
	return nil
}

// Owns reports whether an entity scoped to tenantID is visible to the actor.
func (a Actor) Owns(tenantID uuid.UUID) bool {
	return a.TenantID != uuid.Nil && a.TenantID == tenantID
}

// OutboxRef describes the actor on emitted events.
func (a Actor) OutboxRef() *outbox.ActorRef {
	return &outbox.ActorRef{UserID: a.UserID, TenantID: a.TenantID, Role: string(a.Role)}
}

// NotFound is returned for missing entities and for entities owned by another
// tenant alike.
func NotFound(entity string) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, entity+" not found")
}
