package transactions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sppg-platform/budget-engine/internal/tenancy"
	"github.com/sppg-platform/budget-engine/pkg/db/models"
	"github.com/sppg-platform/budget-engine/pkg/enums"
	pkgerrors "github.com/sppg-platform/budget-engine/pkg/errors"
	"github.com/sppg-platform/budget-engine/pkg/outbox"
	"github.com/sppg-platform/budget-engine/pkg/outbox/payloads"
	"github.com/sppg-platform/budget-engine/pkg/pagination"
)

const maxDescriptionLength = 500

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// LedgerAdjuster applies balance deltas to an allocation inside tx.
type LedgerAdjuster interface {
	Adjust(ctx context.Context, tx *gorm.DB, tenantID, allocationID uuid.UUID, delta decimal.Decimal) (*models.BudgetAllocation, error)
}

// Service records expenditure against allocations. Every write adjusts the
// allocation and persists the transaction row in one database transaction.
type Service interface {
	Record(ctx context.Context, actor tenancy.Actor, input RecordInput) (*models.BudgetTransaction, error)
	Update(ctx context.Context, actor tenancy.Actor, id uuid.UUID, input UpdateInput) (*models.BudgetTransaction, error)
	Delete(ctx context.Context, actor tenancy.Actor, id uuid.UUID) error
	Get(ctx context.Context, actor tenancy.Actor, id uuid.UUID) (*models.BudgetTransaction, error)
	List(ctx context.Context, actor tenancy.Actor, params ListParams) (pagination.Page[models.BudgetTransaction], error)
}

// RecordInput describes a new expenditure.
type RecordInput struct {
	AllocationID    uuid.UUID
	Category        enums.TransactionCategory
	Amount          decimal.Decimal
	TransactionDate time.Time
	Description     string
	ProcurementID   *uuid.UUID
	ProductionID    *uuid.UUID
	DistributionID  *uuid.UUID
	ReceiptURL      *string
}

// UpdateInput carries the fields to change; nil fields are left as they are.
type UpdateInput struct {
	Category        *enums.TransactionCategory
	Amount          *decimal.Decimal
	TransactionDate *time.Time
	Description     *string
	ReceiptURL      *string
}

// ListParams filters and paginates transaction listings.
type ListParams struct {
	AllocationID *uuid.UUID
	Category     *enums.TransactionCategory
	From         *time.Time
	To           *time.Time
	pagination.Params
}

type service struct {
	repo   Repository
	ledger LedgerAdjuster
	tx     txRunner
	outbox outbox.Emitter
}

// NewService wires the transaction recorder.
func NewService(repo Repository, ledger LedgerAdjuster, tx txRunner, emitter outbox.Emitter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger adjuster required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{repo: repo, ledger: ledger, tx: tx, outbox: emitter}, nil
}

func (s *service) Record(ctx context.Context, actor tenancy.Actor, input RecordInput) (*models.BudgetTransaction, error) {
	if err := actor.Require(tenancy.FinanceRoles...); err != nil {
		return nil, err
	}
	if input.AllocationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "allocation id required")
	}
	if err := validateCategory(input.Category); err != nil {
		return nil, err
	}
	if err := validateAmount(input.Amount); err != nil {
		return nil, err
	}
	if input.TransactionDate.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction date required")
	}
	description, err := normalizeDescription(input.Description)
	if err != nil {
		return nil, err
	}

	txn := &models.BudgetTransaction{
		TenantID:        actor.TenantID,
		AllocationID:    input.AllocationID,
		Category:        input.Category,
		Amount:          input.Amount,
		TransactionDate: input.TransactionDate.UTC(),
		Description:     description,
		ProcurementID:   input.ProcurementID,
		ProductionID:    input.ProductionID,
		DistributionID:  input.DistributionID,
		ReceiptURL:      input.ReceiptURL,
		CreatedBy:       actor.UserID,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		allocation, err := s.ledger.Adjust(ctx, tx, actor.TenantID, input.AllocationID, input.Amount)
		if err != nil {
			return err
		}
		if err := s.repo.WithTx(tx).Create(ctx, txn); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create transaction")
		}
		return s.emit(ctx, tx, enums.EventTransactionRecorded, txn, input.Amount, allocation, actor)
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *service) Update(ctx context.Context, actor tenancy.Actor, id uuid.UUID, input UpdateInput) (*models.BudgetTransaction, error) {
	if err := actor.Require(tenancy.FinanceRoles...); err != nil {
		return nil, err
	}
	if input.Category != nil {
		if err := validateCategory(*input.Category); err != nil {
			return nil, err
		}
	}
	if input.Amount != nil {
		if err := validateAmount(*input.Amount); err != nil {
			return nil, err
		}
	}
	if input.TransactionDate != nil && input.TransactionDate.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction date required")
	}
	var description *string
	if input.Description != nil {
		normalized, err := normalizeDescription(*input.Description)
		if err != nil {
			return nil, err
		}
		description = &normalized
	}

	var out *models.BudgetTransaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		txn, err := repo.FindForUpdate(ctx, actor.TenantID, id)
		if err != nil {
			return mapLoadErr(err)
		}

		delta := decimal.Zero
		if input.Amount != nil {
			delta = input.Amount.Sub(txn.Amount)
		}
		allocation, err := s.ledger.Adjust(ctx, tx, actor.TenantID, txn.AllocationID, delta)
		if err != nil {
			return err
		}

		if input.Amount != nil {
			txn.Amount = *input.Amount
		}
		if input.Category != nil {
			txn.Category = *input.Category
		}
		if input.TransactionDate != nil {
			txn.TransactionDate = input.TransactionDate.UTC()
		}
		if description != nil {
			txn.Description = *description
		}
		if input.ReceiptURL != nil {
			txn.ReceiptURL = input.ReceiptURL
		}
		if err := repo.Save(ctx, txn); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update transaction")
		}
		out = txn
		return s.emit(ctx, tx, enums.EventTransactionUpdated, txn, delta, allocation, actor)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) Delete(ctx context.Context, actor tenancy.Actor, id uuid.UUID) error {
	if err := actor.Require(tenancy.FinanceRoles...); err != nil {
		return err
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		txn, err := repo.FindForUpdate(ctx, actor.TenantID, id)
		if err != nil {
			return mapLoadErr(err)
		}
		delta := txn.Amount.Neg()
		allocation, err := s.ledger.Adjust(ctx, tx, actor.TenantID, txn.AllocationID, delta)
		if err != nil {
			return err
		}
		if err := repo.Delete(ctx, actor.TenantID, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete transaction")
		}
		return s.emit(ctx, tx, enums.EventTransactionDeleted, txn, delta, allocation, actor)
	})
}

func (s *service) Get(ctx context.Context, actor tenancy.Actor, id uuid.UUID) (*models.BudgetTransaction, error) {
	if err := actor.Require(); err != nil {
		return nil, err
	}
	txn, err := s.repo.FindByID(ctx, actor.TenantID, id)
	if err != nil {
		return nil, mapLoadErr(err)
	}
	return txn, nil
}

func (s *service) List(ctx context.Context, actor tenancy.Actor, params ListParams) (pagination.Page[models.BudgetTransaction], error) {
	if err := actor.Require(); err != nil {
		return pagination.Page[models.BudgetTransaction]{}, err
	}
	if params.Category != nil {
		if err := validateCategory(*params.Category); err != nil {
			return pagination.Page[models.BudgetTransaction]{}, err
		}
	}
	scope := listScope(params)
	cursor, err := pagination.ParseCursor(params.Cursor, scope)
	if err != nil {
		return pagination.Page[models.BudgetTransaction]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, actor.TenantID, ListFilter{
		AllocationID: params.AllocationID,
		Category:     params.Category,
		From:         params.From,
		To:           params.To,
		Cursor:       cursor,
		Limit:        params.Limit,
	})
	if err != nil {
		return pagination.Page[models.BudgetTransaction]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions")
	}
	return pagination.BuildPage(rows, params.Limit, scope, func(txn models.BudgetTransaction) pagination.Cursor {
		return pagination.Cursor{SortAt: txn.TransactionDate, ID: txn.ID}
	}), nil
}

func listScope(params ListParams) string {
	var allocation, category, from, to string
	if params.AllocationID != nil {
		allocation = params.AllocationID.String()
	}
	if params.Category != nil {
		category = string(*params.Category)
	}
	if params.From != nil {
		from = params.From.UTC().Format(time.RFC3339)
	}
	if params.To != nil {
		to = params.To.UTC().Format(time.RFC3339)
	}
	return pagination.Scope(allocation, category, from, to)
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, txn *models.BudgetTransaction, delta decimal.Decimal, allocation *models.BudgetAllocation, actor tenancy.Actor) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateBudgetTransaction,
		AggregateID:   txn.ID,
		TenantID:      txn.TenantID,
		Actor:         actor.OutboxRef(),
		Data: payloads.TransactionEvent{
			TransactionID:   txn.ID,
			AllocationID:    txn.AllocationID,
			TenantID:        txn.TenantID,
			Category:        txn.Category,
			Amount:          txn.Amount,
			Delta:           delta,
			RemainingAmount: allocation.RemainingAmount,
		},
	})
}

func validateCategory(category enums.TransactionCategory) error {
	if !category.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transaction category %q", category))
	}
	return nil
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if amount.Exponent() < -2 && !amount.Equal(amount.Round(2)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount supports at most two decimal places")
	}
	return nil
}

func normalizeDescription(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "description required")
	}
	if len(value) > maxDescriptionLength {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "description too long")
	}
	return value, nil
}

func mapLoadErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tenancy.NotFound("transaction")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction")
}
