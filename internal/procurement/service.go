package procurement

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sppg-platform/budget-engine/internal/aging"
	"github.com/sppg-platform/budget-engine/internal/tenancy"
	"github.com/sppg-platform/budget-engine/pkg/db/models"
	"github.com/sppg-platform/budget-engine/pkg/enums"
	pkgerrors "github.com/sppg-platform/budget-engine/pkg/errors"
	"github.com/sppg-platform/budget-engine/pkg/outbox"
	"github.com/sppg-platform/budget-engine/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service tracks supplier payables and reports on their aging.
type Service interface {
	CreatePayable(ctx context.Context, actor tenancy.Actor, input PayableInput) (*models.ProcurementPayment, error)
	RecordPayment(ctx context.Context, actor tenancy.Actor, id uuid.UUID, input PaymentInput) (*models.ProcurementPayment, error)
	Get(ctx context.Context, actor tenancy.Actor, id uuid.UUID) (*models.ProcurementPayment, error)
	List(ctx context.Context, actor tenancy.Actor, filter ListFilter) ([]models.ProcurementPayment, error)
	AgingReport(ctx context.Context, actor tenancy.Actor, asOf *time.Time) (*AgingReport, error)
	Overdue(ctx context.Context, actor tenancy.Actor, asOf *time.Time) ([]OverduePayable, error)
	ExportAging(ctx context.Context, actor tenancy.Actor, asOf *time.Time, w io.Writer) error
}

// PayableInput registers an amount owed to a supplier.
type PayableInput struct {
	ProcurementID *uuid.UUID
	SupplierName  string
	InvoiceNumber string
	Amount        decimal.Decimal
	DueDate       time.Time
}

// PaymentInput records money sent against a payable.
type PaymentInput struct {
	Amount decimal.Decimal
	PaidAt *time.Time
}

// BucketSummary aggregates outstanding payables in one aging bucket.
type BucketSummary struct {
	Bucket      enums.AgingBucket `json:"bucket"`
	Count       int               `json:"count"`
	Outstanding decimal.Decimal   `json:"outstanding"`
}

// AgingReport is the aging breakdown of a tenant's unpaid payables.
type AgingReport struct {
	AsOf             time.Time       `json:"asOf"`
	Buckets          []BucketSummary `json:"buckets"`
	TotalCount       int             `json:"totalCount"`
	TotalOutstanding decimal.Decimal `json:"totalOutstanding"`
}

// OverduePayable pairs a payable with its aging classification.
type OverduePayable struct {
	Payment     models.ProcurementPayment `json:"payment"`
	Outstanding decimal.Decimal           `json:"outstanding"`
	DaysOverdue int                       `json:"daysOverdue"`
	Bucket      enums.AgingBucket         `json:"bucket"`
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outbox.Emitter
	now    func() time.Time
}

// NewService wires the payables service.
func NewService(repo Repository, tx txRunner, emitter outbox.Emitter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("procurement repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		outbox: emitter,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) CreatePayable(ctx context.Context, actor tenancy.Actor, input PayableInput) (*models.ProcurementPayment, error) {
	if err := actor.Require(tenancy.ProcurementRoles...); err != nil {
		return nil, err
	}
	supplier := strings.TrimSpace(input.SupplierName)
	invoice := strings.TrimSpace(input.InvoiceNumber)
	if supplier == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "supplier name required")
	}
	if invoice == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice number required")
	}
	if err := validateMoney(input.Amount); err != nil {
		return nil, err
	}
	if input.DueDate.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "due date required")
	}
	payment := &models.ProcurementPayment{
		TenantID:      actor.TenantID,
		ProcurementID: input.ProcurementID,
		SupplierName:  supplier,
		InvoiceNumber: invoice,
		Amount:        input.Amount,
		PaidAmount:    decimal.Zero,
		DueDate:       input.DueDate.UTC(),
		Status:        enums.PaymentStatusUnpaid,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payable")
	}
	return payment, nil
}

func (s *service) RecordPayment(ctx context.Context, actor tenancy.Actor, id uuid.UUID, input PaymentInput) (*models.ProcurementPayment, error) {
	if err := actor.Require(tenancy.FinanceRoles...); err != nil {
		return nil, err
	}
	if err := validateMoney(input.Amount); err != nil {
		return nil, err
	}
	paidAt := s.now()
	if input.PaidAt != nil && !input.PaidAt.IsZero() {
		paidAt = input.PaidAt.UTC()
	}

	var out *models.ProcurementPayment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payment, err := repo.FindForUpdate(ctx, actor.TenantID, id)
		if err != nil {
			return mapLoadErr(err)
		}
		outstanding := payment.Outstanding()
		if !outstanding.IsPositive() {
			return pkgerrors.New(pkgerrors.CodeConflict, "payable already settled")
		}
		if input.Amount.GreaterThan(outstanding) {
			return pkgerrors.New(pkgerrors.CodeValidation, "payment exceeds outstanding amount").
				WithDetails(map[string]string{
					"outstanding": outstanding.StringFixed(2),
					"attempted":   input.Amount.StringFixed(2),
				})
		}
		payment.PaidAmount = payment.PaidAmount.Add(input.Amount)
		payment.Status = enums.PaymentStatusPartial
		if payment.Outstanding().IsZero() {
			payment.Status = enums.PaymentStatusPaid
		}
		payment.LastPaidAt = &paidAt
		if err := repo.Save(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save payable")
		}
		out = payment
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentRecorded,
			AggregateType: enums.AggregateProcurementPayment,
			AggregateID:   payment.ID,
			TenantID:      payment.TenantID,
			Actor:         actor.OutboxRef(),
			Data: payloads.PaymentRecordedEvent{
				PaymentID:   payment.ID,
				TenantID:    payment.TenantID,
				Amount:      input.Amount,
				PaidAmount:  payment.PaidAmount,
				Outstanding: payment.Outstanding(),
				Status:      payment.Status,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, actor tenancy.Actor, id uuid.UUID) (*models.ProcurementPayment, error) {
	if err := actor.Require(); err != nil {
		return nil, err
	}
	payment, err := s.repo.FindByID(ctx, actor.TenantID, id)
	if err != nil {
		return nil, mapLoadErr(err)
	}
	return payment, nil
}

func (s *service) List(ctx context.Context, actor tenancy.Actor, filter ListFilter) ([]models.ProcurementPayment, error) {
	if err := actor.Require(); err != nil {
		return nil, err
	}
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status filter")
	}
	filter.SupplierName = strings.TrimSpace(filter.SupplierName)
	payments, err := s.repo.List(ctx, actor.TenantID, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payables")
	}
	return payments, nil
}

func (s *service) AgingReport(ctx context.Context, actor tenancy.Actor, asOf *time.Time) (*AgingReport, error) {
	if err := actor.Require(); err != nil {
		return nil, err
	}
	at := s.resolveAsOf(asOf)
	payments, err := s.repo.ListOutstanding(ctx, actor.TenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list outstanding payables")
	}
	return buildAgingReport(payments, at), nil
}

func (s *service) Overdue(ctx context.Context, actor tenancy.Actor, asOf *time.Time) ([]OverduePayable, error) {
	if err := actor.Require(); err != nil {
		return nil, err
	}
	at := s.resolveAsOf(asOf)
	payments, err := s.repo.ListOutstanding(ctx, actor.TenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list outstanding payables")
	}
	return overdueOf(payments, at), nil
}

func (s *service) resolveAsOf(asOf *time.Time) time.Time {
	if asOf != nil && !asOf.IsZero() {
		return asOf.UTC()
	}
	return s.now()
}

func buildAgingReport(payments []models.ProcurementPayment, asOf time.Time) *AgingReport {
	index := make(map[enums.AgingBucket]int)
	report := &AgingReport{AsOf: asOf, TotalOutstanding: decimal.Zero}
	for i, bucket := range enums.AgingBuckets() {
		index[bucket] = i
		report.Buckets = append(report.Buckets, BucketSummary{Bucket: bucket, Outstanding: decimal.Zero})
	}
	for _, payment := range payments {
		outstanding := payment.Outstanding()
		if !outstanding.IsPositive() {
			continue
		}
		_, bucket := aging.Classify(payment.DueDate, asOf)
		summary := &report.Buckets[index[bucket]]
		summary.Count++
		summary.Outstanding = summary.Outstanding.Add(outstanding)
		report.TotalCount++
		report.TotalOutstanding = report.TotalOutstanding.Add(outstanding)
	}
	return report
}

// overdueOf keeps payables past their due date, most overdue first.
func overdueOf(payments []models.ProcurementPayment, asOf time.Time) []OverduePayable {
	out := make([]OverduePayable, 0, len(payments))
	for _, payment := range payments {
		outstanding := payment.Outstanding()
		if !outstanding.IsPositive() {
			continue
		}
		days, bucket := aging.Classify(payment.DueDate, asOf)
		if days == 0 {
			continue
		}
		out = append(out, OverduePayable{
			Payment:     payment,
			Outstanding: outstanding,
			DaysOverdue: days,
			Bucket:      bucket,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DaysOverdue != out[j].DaysOverdue {
			return out[i].DaysOverdue > out[j].DaysOverdue
		}
		return out[i].Outstanding.GreaterThan(out[j].Outstanding)
	})
	return out
}

func validateMoney(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if !amount.Equal(amount.Round(2)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount supports at most two decimal places")
	}
	return nil
}

func mapLoadErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tenancy.NotFound("payable")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payable")
}
