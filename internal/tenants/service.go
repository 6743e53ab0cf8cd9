package tenants

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sppg-platform/budget-engine/internal/tenancy"
	"github.com/sppg-platform/budget-engine/pkg/db"
	"github.com/sppg-platform/budget-engine/pkg/db/models"
	"github.com/sppg-platform/budget-engine/pkg/enums"
	pkgerrors "github.com/sppg-platform/budget-engine/pkg/errors"
)

// Service exposes the tenant registry.
type Service interface {
	Create(ctx context.Context, actor tenancy.Actor, input CreateInput) (*models.Tenant, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	ListActive(ctx context.Context) ([]models.Tenant, error)
	SetActive(ctx context.Context, actor tenancy.Actor, id uuid.UUID, active bool) error
}

// CreateInput registers a new SPPG.
type CreateInput struct {
	Code string
	Name string
}

type service struct {
	repo Repository
}

// NewService builds the tenant registry service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("tenants repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, actor tenancy.Actor, input CreateInput) (*models.Tenant, error) {
	if err := requireSuperadmin(actor); err != nil {
		return nil, err
	}
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	name := strings.TrimSpace(input.Name)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant code required")
	}
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant name required")
	}
	tenant := &models.Tenant{Code: code, Name: name, IsActive: true}
	if err := s.repo.Create(ctx, tenant); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "tenant code already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create tenant")
	}
	return tenant, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	tenant, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, tenancy.NotFound("tenant")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tenant")
	}
	return tenant, nil
}

func (s *service) ListActive(ctx context.Context) ([]models.Tenant, error) {
	tenants, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list active tenants")
	}
	return tenants, nil
}

func (s *service) SetActive(ctx context.Context, actor tenancy.Actor, id uuid.UUID, active bool) error {
	if err := requireSuperadmin(actor); err != nil {
		return err
	}
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tenancy.NotFound("tenant")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update tenant status")
	}
	return nil
}

// The registry sits above tenant scoping, so only platform operators may write it.
func requireSuperadmin(actor tenancy.Actor) error {
	if actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context")
	}
	if actor.Role != enums.MemberRoleSuperadmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "platform operator role required")
	}
	return nil
}
