package ledger

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sppg-platform/budget-engine/internal/tenancy"
	"github.com/sppg-platform/budget-engine/pkg/db"
	"github.com/sppg-platform/budget-engine/pkg/db/dbtest"
	"github.com/sppg-platform/budget-engine/pkg/db/models"
	"github.com/sppg-platform/budget-engine/pkg/enums"
	pkgerrors "github.com/sppg-platform/budget-engine/pkg/errors"
	"github.com/sppg-platform/budget-engine/pkg/logger"
	"github.com/sppg-platform/budget-engine/pkg/outbox"
)

type fixture struct {
	client *db.Client
	svc    Service
	actor  tenancy.Actor
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := dbtest.Open(t)
	tenant := dbtest.SeedTenant(t, client, "JKT-01")
	emitter := outbox.NewService(outbox.NewRepository(client.DB()), nil)
	svc, err := NewService(NewRepository(client.DB()), client, emitter, nil, testLogger())
	require.NoError(t, err)
	return fixture{
		client: client,
		svc:    svc,
		actor:  tenancy.Actor{TenantID: tenant.ID, UserID: uuid.New(), Role: enums.MemberRoleHead},
	}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "ledger-test", Output: io.Discard})
}

func (f fixture) createAllocation(t *testing.T, amount string) *models.BudgetAllocation {
	t.Helper()
	allocation, err := f.svc.Create(context.Background(), f.actor, CreateAllocationInput{
		ProgramID:       uuid.New(),
		Source:          enums.FundingSourceCentralGovernment,
		FiscalYear:      2025,
		AllocatedAmount: decimal.RequireFromString(amount),
	})
	require.NoError(t, err)
	return allocation
}

func (f fixture) reload(t *testing.T, id uuid.UUID) models.BudgetAllocation {
	t.Helper()
	var allocation models.BudgetAllocation
	require.NoError(t, f.client.DB().First(&allocation, "id = ?", id).Error)
	return allocation
}

func (f fixture) outboxCount(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.client.DB().Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&count).Error)
	return count
}

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, decimal.RequireFromString(want).Equal(got), "want %s got %s", want, got.String())
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	client := dbtest.Open(t)
	emitter := outbox.NewService(outbox.NewRepository(client.DB()), nil)

	_, err := NewService(nil, client, emitter, nil, testLogger())
	assert.Error(t, err)
	_, err = NewService(NewRepository(client.DB()), nil, emitter, nil, testLogger())
	assert.Error(t, err)
	_, err = NewService(NewRepository(client.DB()), client, nil, nil, testLogger())
	assert.Error(t, err)
	_, err = NewService(NewRepository(client.DB()), client, emitter, nil, nil)
	assert.Error(t, err)
}

func TestCreateAllocation(t *testing.T) {
	f := newFixture(t)
	allocation := f.createAllocation(t, "1000000")

	stored := f.reload(t, allocation.ID)
	assertAmount(t, "1000000", stored.AllocatedAmount)
	assertAmount(t, "0", stored.SpentAmount)
	assertAmount(t, "1000000", stored.RemainingAmount)
	assert.EqualValues(t, 1, f.outboxCount(t, enums.EventAllocationCreated))
}

func TestCreateAllocationRejectsDuplicateEnvelope(t *testing.T) {
	f := newFixture(t)
	input := CreateAllocationInput{
		ProgramID:       uuid.New(),
		Source:          enums.FundingSourceRegionalGovernment,
		FiscalYear:      2025,
		AllocatedAmount: decimal.NewFromInt(500),
	}
	_, err := f.svc.Create(context.Background(), f.actor, input)
	require.NoError(t, err)

	_, err = f.svc.Create(context.Background(), f.actor, input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestCreateAllocationValidation(t *testing.T) {
	f := newFixture(t)
	base := CreateAllocationInput{
		ProgramID:       uuid.New(),
		Source:          enums.FundingSourceOther,
		FiscalYear:      2025,
		AllocatedAmount: decimal.NewFromInt(10),
	}

	zero := base
	zero.AllocatedAmount = decimal.Zero
	badSource := base
	badSource.Source = "GRANT"
	badYear := base
	badYear.FiscalYear = 1999

	for name, input := range map[string]CreateAllocationInput{"zero": zero, "source": badSource, "year": badYear} {
		_, err := f.svc.Create(context.Background(), f.actor, input)
		assert.Truef(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "case %s: %v", name, err)
	}

	viewer := f.actor
	viewer.Role = enums.MemberRoleViewer
	_, err := f.svc.Create(context.Background(), viewer, base)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestAdjustMovesFundsBetweenSpentAndRemaining(t *testing.T) {
	f := newFixture(t)
	allocation := f.createAllocation(t, "1000000")
	ctx := context.Background()

	updated, err := f.svc.Adjust(ctx, nil, f.actor.TenantID, allocation.ID, decimal.NewFromInt(300000))
	require.NoError(t, err)
	assertAmount(t, "300000", updated.SpentAmount)
	assertAmount(t, "700000", updated.RemainingAmount)
	require.NotNil(t, updated.LastSpentAt)

	_, err = f.svc.Adjust(ctx, nil, f.actor.TenantID, allocation.ID, decimal.NewFromInt(-100000))
	require.NoError(t, err)

	stored := f.reload(t, allocation.ID)
	assertAmount(t, "200000", stored.SpentAmount)
	assertAmount(t, "800000", stored.RemainingAmount)
	assert.True(t, stored.SpentAmount.Add(stored.RemainingAmount).Equal(stored.AllocatedAmount))
}

func TestAdjustRejectsOverspendWithoutChangingBalances(t *testing.T) {
	f := newFixture(t)
	allocation := f.createAllocation(t, "1000000")
	ctx := context.Background()

	_, err := f.svc.Adjust(ctx, nil, f.actor.TenantID, allocation.ID, decimal.NewFromInt(300000))
	require.NoError(t, err)

	_, err = f.svc.Adjust(ctx, nil, f.actor.TenantID, allocation.ID, decimal.NewFromInt(800000))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientBudget))

	details, ok := pkgerrors.As(err).Details().(InsufficientBudgetDetails)
	require.True(t, ok)
	assertAmount(t, "800000", details.Attempted)
	assertAmount(t, "700000", details.Available)

	stored := f.reload(t, allocation.ID)
	assertAmount(t, "300000", stored.SpentAmount)
	assertAmount(t, "700000", stored.RemainingAmount)
}

func TestAdjustAllowsSpendingExactlyTheRemainder(t *testing.T) {
	f := newFixture(t)
	allocation := f.createAllocation(t, "100")

	updated, err := f.svc.Adjust(context.Background(), nil, f.actor.TenantID, allocation.ID, decimal.NewFromInt(100))
	require.NoError(t, err)
	assertAmount(t, "0", updated.RemainingAmount)
}

func TestAdjustRejectsNegativeSpent(t *testing.T) {
	f := newFixture(t)
	allocation := f.createAllocation(t, "100")

	_, err := f.svc.Adjust(context.Background(), nil, f.actor.TenantID, allocation.ID, decimal.NewFromInt(-1))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestAdjustHidesOtherTenantsAllocations(t *testing.T) {
	f := newFixture(t)
	allocation := f.createAllocation(t, "100")
	other := dbtest.SeedTenant(t, f.client, "BDG-02")

	_, err := f.svc.Adjust(context.Background(), nil, other.ID, allocation.ID, decimal.NewFromInt(1))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.Adjust(context.Background(), nil, f.actor.TenantID, uuid.New(), decimal.NewFromInt(1))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	foreign := tenancy.Actor{TenantID: other.ID, UserID: uuid.New(), Role: enums.MemberRoleHead}
	_, err = f.svc.Get(context.Background(), foreign, allocation.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestTopUpCreatesThenIncrementsEnvelope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	programID := uuid.New()
	input := TopUpInput{
		TenantID:   f.actor.TenantID,
		ProgramID:  programID,
		Source:     enums.FundingSourceCentralGovernment,
		FiscalYear: 2025,
		Amount:     decimal.NewFromInt(250000),
	}

	var first *models.BudgetAllocation
	require.NoError(t, f.client.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		first, err = f.svc.TopUp(ctx, tx, input)
		return err
	}))
	assertAmount(t, "250000", first.AllocatedAmount)

	_, err := f.svc.Adjust(ctx, nil, f.actor.TenantID, first.ID, decimal.NewFromInt(50000))
	require.NoError(t, err)

	require.NoError(t, f.client.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := f.svc.TopUp(ctx, tx, input)
		return err
	}))

	stored := f.reload(t, first.ID)
	assertAmount(t, "500000", stored.AllocatedAmount)
	assertAmount(t, "50000", stored.SpentAmount)
	assertAmount(t, "450000", stored.RemainingAmount)
	assert.EqualValues(t, 1, f.outboxCount(t, enums.EventAllocationToppedUp))

	_, err = f.svc.TopUp(ctx, nil, input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))
}

func TestCorrectAllocation(t *testing.T) {
	f := newFixture(t)
	allocation := f.createAllocation(t, "1000")
	ctx := context.Background()
	_, err := f.svc.Adjust(ctx, nil, f.actor.TenantID, allocation.ID, decimal.NewFromInt(400))
	require.NoError(t, err)

	_, err = f.svc.Correct(ctx, f.actor, allocation.ID, CorrectAllocationInput{AllocatedAmount: decimal.NewFromInt(399)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	corrected, err := f.svc.Correct(ctx, f.actor, allocation.ID, CorrectAllocationInput{AllocatedAmount: decimal.NewFromInt(600)})
	require.NoError(t, err)
	assertAmount(t, "200", corrected.RemainingAmount)

	accountant := f.actor
	accountant.Role = enums.MemberRoleAccountant
	_, err = f.svc.Correct(ctx, accountant, allocation.ID, CorrectAllocationInput{AllocatedAmount: decimal.NewFromInt(700)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestDeleteAllocation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	withSpend := f.createAllocation(t, "1000")
	require.NoError(t, f.client.DB().Create(&models.BudgetTransaction{
		TenantID:        f.actor.TenantID,
		AllocationID:    withSpend.ID,
		Category:        enums.TransactionCategoryFood,
		Amount:          decimal.NewFromInt(10),
		TransactionDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Description:     "rice",
		CreatedBy:       f.actor.UserID,
	}).Error)

	err := f.svc.Delete(ctx, f.actor, withSpend.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeHasDependents))

	empty, err := f.svc.Create(ctx, f.actor, CreateAllocationInput{
		ProgramID:       uuid.New(),
		Source:          enums.FundingSourceOther,
		FiscalYear:      2025,
		AllocatedAmount: decimal.NewFromInt(5),
	})
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, f.actor, empty.ID))

	_, err = f.svc.Get(ctx, f.actor, empty.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.EqualValues(t, 1, f.outboxCount(t, enums.EventAllocationDeleted))
}

func TestListAllocationsFilters(t *testing.T) {
	f := newFixture(t)
	f.createAllocation(t, "10")
	f.createAllocation(t, "20")

	year := 2025
	all, err := f.svc.List(context.Background(), f.actor, ListFilter{FiscalYear: &year})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	other := 2024
	none, err := f.svc.List(context.Background(), f.actor, ListFilter{FiscalYear: &other})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	allocation := f.createAllocation(t, "1000")

	record := func(category enums.TransactionCategory, amount int64, date time.Time) {
		_, err := f.svc.Adjust(ctx, nil, f.actor.TenantID, allocation.ID, decimal.NewFromInt(amount))
		require.NoError(t, err)
		require.NoError(t, f.client.DB().Create(&models.BudgetTransaction{
			TenantID:        f.actor.TenantID,
			AllocationID:    allocation.ID,
			Category:        category,
			Amount:          decimal.NewFromInt(amount),
			TransactionDate: date,
			Description:     string(category),
			CreatedBy:       f.actor.UserID,
		}).Error)
	}
	record(enums.TransactionCategoryFood, 100, time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC))
	record(enums.TransactionCategoryFood, 150, time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC))
	record(enums.TransactionCategoryTransport, 50, time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC))

	summary, err := f.svc.Summary(ctx, f.actor, 2025, time.Date(2025, 3, 25, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assertAmount(t, "1000", summary.TotalAllocated)
	assertAmount(t, "300", summary.TotalSpent)
	assertAmount(t, "700", summary.TotalRemaining)
	assertAmount(t, "30", summary.UtilizationPct)
	assertAmount(t, "200", summary.CurrentMonthSpend)
	assertAmount(t, "100", summary.PreviousMonthSpend)
	require.NotNil(t, summary.MonthOverMonthPct)
	assertAmount(t, "100", *summary.MonthOverMonthPct)

	require.Len(t, summary.SpendByCategory, 2)
	byCategory := map[enums.TransactionCategory]decimal.Decimal{}
	for _, row := range summary.SpendByCategory {
		byCategory[row.Category] = row.Amount
	}
	assertAmount(t, "250", byCategory[enums.TransactionCategoryFood])
	assertAmount(t, "50", byCategory[enums.TransactionCategoryTransport])
}

func TestSummaryWithoutPreviousMonthSpend(t *testing.T) {
	f := newFixture(t)
	summary, err := f.svc.Summary(context.Background(), f.actor, 2025, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Nil(t, summary.MonthOverMonthPct)
	assertAmount(t, "0", summary.UtilizationPct)
	assert.NotNil(t, summary.SpendByCategory)
}
