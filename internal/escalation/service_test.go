package escalation

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sppg-platform/budget-engine/internal/approvals"
	"github.com/sppg-platform/budget-engine/internal/tenants"
	"github.com/sppg-platform/budget-engine/pkg/db"
	"github.com/sppg-platform/budget-engine/pkg/db/dbtest"
	"github.com/sppg-platform/budget-engine/pkg/db/models"
	"github.com/sppg-platform/budget-engine/pkg/enums"
	pkgerrors "github.com/sppg-platform/budget-engine/pkg/errors"
	"github.com/sppg-platform/budget-engine/pkg/logger"
	"github.com/sppg-platform/budget-engine/pkg/metrics"
	"github.com/sppg-platform/budget-engine/pkg/outbox"
)

var asOf = time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)

func day(d int) time.Time {
	return time.Date(2025, 5, d, 0, 0, 0, 0, time.UTC)
}

func seedLevels(t *testing.T, client *db.Client, tenantID uuid.UUID) {
	t.Helper()
	levels := []models.ApprovalLevel{
		{
			TenantID:       tenantID,
			Level:          1,
			Label:          "Accountant",
			MinAmount:      decimal.Zero,
			MaxAmount:      decimal.NewNullDecimal(decimal.NewFromInt(5000000)),
			RequiredRole:   enums.MemberRoleAccountant,
			EscalationDays: 3,
		},
		{
			TenantID:       tenantID,
			Level:          2,
			Label:          "Head",
			MinAmount:      decimal.NewFromInt(5000000),
			RequiredRole:   enums.MemberRoleHead,
			EscalationDays: 5,
		},
	}
	require.NoError(t, client.DB().Create(&levels).Error)
}

func seedItem(t *testing.T, client *db.Client, tenantID uuid.UUID, level int, pendingSince time.Time, status enums.ApprovalItemStatus) models.ApprovalItem {
	t.Helper()
	role := enums.MemberRoleAccountant
	amount := decimal.NewFromInt(1000000)
	if level == 2 {
		role = enums.MemberRoleHead
		amount = decimal.NewFromInt(7000000)
	}
	item := models.ApprovalItem{
		TenantID:      tenantID,
		ReferenceType: "purchase_order",
		ReferenceID:   uuid.New(),
		Description:   "rice 2 tons",
		Amount:        amount,
		Level:         level,
		RequiredRole:  role,
		Status:        status,
		PendingSince:  pendingSince,
		SubmittedBy:   uuid.New(),
	}
	require.NoError(t, client.DB().Create(&item).Error)
	return item
}

func loadItem(t *testing.T, client *db.Client, id uuid.UUID) models.ApprovalItem {
	t.Helper()
	var item models.ApprovalItem
	require.NoError(t, client.DB().First(&item, "id = ?", id).Error)
	return item
}

func newSweep(t *testing.T, client *db.Client, repo approvals.Repository, m *metrics.LedgerMetrics) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Tenants:   tenants.NewRepository(client.DB()),
		Approvals: repo,
		DB:        client,
		Outbox:    outbox.NewService(outbox.NewRepository(client.DB()), nil),
		Metrics:   m,
		Logger:    logger.New(logger.Options{ServiceName: "escalation-test", Output: io.Discard}),
	})
	require.NoError(t, err)
	return svc
}

func TestSweepPromotesAndFlagsOverdueItems(t *testing.T) {
	ctx := context.Background()
	client := dbtest.Open(t)
	tenant := dbtest.SeedTenant(t, client, "BNT-01")
	seedLevels(t, client, tenant.ID)

	stale := seedItem(t, client, tenant.ID, 1, day(1), enums.ApprovalItemStatusPending)
	fresh := seedItem(t, client, tenant.ID, 1, day(8), enums.ApprovalItemStatusPending)
	onDeadline := seedItem(t, client, tenant.ID, 1, day(7), enums.ApprovalItemStatusPending)
	top := seedItem(t, client, tenant.ID, 2, day(1), enums.ApprovalItemStatusPending)
	decided := seedItem(t, client, tenant.ID, 1, day(1), enums.ApprovalItemStatusApproved)

	reg := prometheus.NewRegistry()
	m := metrics.NewLedgerMetrics(reg)
	svc := newSweep(t, client, approvals.NewRepository(client.DB()), m)

	at := asOf
	result, err := svc.RunEscalationSweep(ctx, &at)
	require.NoError(t, err)
	require.Contains(t, result, tenant.ID)

	res := result[tenant.ID]
	require.NoError(t, res.Err)
	assert.ElementsMatch(t, []uuid.UUID{stale.ID, top.ID}, res.EscalatedIDs)
	assert.Equal(t, []uuid.UUID{top.ID}, res.FlaggedIDs)

	promoted := loadItem(t, client, stale.ID)
	assert.Equal(t, 2, promoted.Level)
	assert.Equal(t, enums.MemberRoleHead, promoted.RequiredRole)
	assert.True(t, promoted.PendingSince.Equal(asOf))
	assert.Equal(t, 1, promoted.EscalationCount)
	assert.False(t, promoted.Flagged)

	flagged := loadItem(t, client, top.ID)
	assert.Equal(t, 2, flagged.Level)
	assert.True(t, flagged.Flagged)
	require.NotNil(t, flagged.EscalatedAt)

	for _, id := range []uuid.UUID{fresh.ID, onDeadline.ID, decided.ID} {
		untouched := loadItem(t, client, id)
		assert.Zero(t, untouched.EscalationCount)
		assert.Nil(t, untouched.EscalatedAt)
	}

	var events int64
	require.NoError(t, client.DB().Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventApprovalEscalated).Count(&events).Error)
	assert.EqualValues(t, 2, events)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.EscalationCounter(metrics.EscalationPromoted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EscalationCounter(metrics.EscalationFlagged)))

	again, err := svc.RunEscalationSweep(ctx, &at)
	require.NoError(t, err)
	assert.Empty(t, again[tenant.ID].EscalatedIDs)
}

func TestSweepIsolatesTenantFailures(t *testing.T) {
	ctx := context.Background()
	client := dbtest.Open(t)
	first := dbtest.SeedTenant(t, client, "A-01")
	broken := dbtest.SeedTenant(t, client, "B-02")
	misconfigured := dbtest.SeedTenant(t, client, "C-03")
	panicking := dbtest.SeedTenant(t, client, "D-04")
	last := dbtest.SeedTenant(t, client, "E-05")

	for _, tenant := range []models.Tenant{first, broken, panicking, last} {
		seedLevels(t, client, tenant.ID)
	}
	firstItem := seedItem(t, client, first.ID, 1, day(1), enums.ApprovalItemStatusPending)
	brokenItem := seedItem(t, client, broken.ID, 1, day(1), enums.ApprovalItemStatusPending)
	seedItem(t, client, misconfigured.ID, 1, day(1), enums.ApprovalItemStatusPending)
	seedItem(t, client, panicking.ID, 1, day(1), enums.ApprovalItemStatusPending)
	lastItem := seedItem(t, client, last.ID, 1, day(1), enums.ApprovalItemStatusPending)

	reg := prometheus.NewRegistry()
	m := metrics.NewLedgerMetrics(reg)
	repo := faultyRepo{
		Repository:  approvals.NewRepository(client.DB()),
		failTenant:  broken.ID,
		panicTenant: panicking.ID,
	}
	svc := newSweep(t, client, repo, m)

	at := asOf
	result, err := svc.RunEscalationSweep(ctx, &at)
	require.NoError(t, err)
	require.Len(t, result, 5)

	assert.NoError(t, result[first.ID].Err)
	assert.Equal(t, []uuid.UUID{firstItem.ID}, result[first.ID].EscalatedIDs)
	assert.NoError(t, result[last.ID].Err)
	assert.Equal(t, []uuid.UUID{lastItem.ID}, result[last.ID].EscalatedIDs)

	assert.True(t, pkgerrors.IsCode(result[broken.ID].Err, pkgerrors.CodeDependency))
	assert.Empty(t, result[broken.ID].EscalatedIDs)
	assert.Zero(t, loadItem(t, client, brokenItem.ID).EscalationCount)

	assert.True(t, pkgerrors.IsCode(result[misconfigured.ID].Err, pkgerrors.CodeNoMatchingLevel))
	assert.True(t, pkgerrors.IsCode(result[panicking.ID].Err, pkgerrors.CodeInternal))

	assert.Len(t, result.Failed(), 3)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.TenantFailureCounter()))
}

func TestSweepFailsOnlyWhenTenantsCannotBeListed(t *testing.T) {
	client := dbtest.Open(t)
	svc, err := NewService(ServiceParams{
		Tenants:   failingLister{},
		Approvals: approvals.NewRepository(client.DB()),
		DB:        client,
		Outbox:    outbox.NewService(outbox.NewRepository(client.DB()), nil),
		Logger:    logger.New(logger.Options{ServiceName: "escalation-test", Output: io.Discard}),
	})
	require.NoError(t, err)

	_, err = svc.RunEscalationSweep(context.Background(), nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestNewServiceValidatesParams(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
}

type failingLister struct{}

func (failingLister) ListActive(context.Context) ([]models.Tenant, error) {
	return nil, errors.New("database unavailable")
}

type faultyRepo struct {
	approvals.Repository
	failTenant  uuid.UUID
	panicTenant uuid.UUID
}

func (r faultyRepo) WithTx(tx *gorm.DB) approvals.Repository {
	return faultyRepo{
		Repository:  r.Repository.WithTx(tx),
		failTenant:  r.failTenant,
		panicTenant: r.panicTenant,
	}
}

func (r faultyRepo) ListLevels(ctx context.Context, tenantID uuid.UUID) ([]models.ApprovalLevel, error) {
	if tenantID == r.failTenant {
		return nil, errors.New("connection reset by peer")
	}
	return r.Repository.ListLevels(ctx, tenantID)
}

func (r faultyRepo) LockEscalationCandidates(ctx context.Context, tenantID uuid.UUID) ([]models.ApprovalItem, error) {
	if tenantID == r.panicTenant {
		panic("nil level map")
	}
	return r.Repository.LockEscalationCandidates(ctx, tenantID)
}

// flakyEmitter fails one Emit with a serialization error, the way a
// concurrent writer would abort the tenant transaction.
type flakyEmitter struct {
	next   outbox.Emitter
	failOn int
	calls  int
}

func (f *flakyEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.calls++
	if f.calls == f.failOn {
		return &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
	}
	return f.next.Emit(ctx, tx, event)
}

func TestSweepRetriedTransactionReportsEachItemOnce(t *testing.T) {
	ctx := context.Background()
	client := dbtest.Open(t)
	tenant := dbtest.SeedTenant(t, client, "SRG-01")
	seedLevels(t, client, tenant.ID)
	first := seedItem(t, client, tenant.ID, 1, day(1), enums.ApprovalItemStatusPending)
	second := seedItem(t, client, tenant.ID, 1, day(2), enums.ApprovalItemStatusPending)

	emitter := &flakyEmitter{next: outbox.NewService(outbox.NewRepository(client.DB()), nil), failOn: 2}
	m := metrics.NewLedgerMetrics(prometheus.NewRegistry())
	svc, err := NewService(ServiceParams{
		Tenants:   tenants.NewRepository(client.DB()),
		Approvals: approvals.NewRepository(client.DB()),
		DB:        client,
		Outbox:    emitter,
		Metrics:   m,
		Logger:    logger.New(logger.Options{ServiceName: "escalation-test", Output: io.Discard}),
	})
	require.NoError(t, err)

	at := asOf
	result, err := svc.RunEscalationSweep(ctx, &at)
	require.NoError(t, err)

	res := result[tenant.ID]
	require.NoError(t, res.Err)
	assert.Equal(t, 4, emitter.calls, "the tenant pass should have run twice")
	assert.ElementsMatch(t, []uuid.UUID{first.ID, second.ID}, res.EscalatedIDs)
	assert.Empty(t, res.FlaggedIDs)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EscalationCounter(metrics.EscalationPromoted)))

	var events int64
	require.NoError(t, client.DB().Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventApprovalEscalated).Count(&events).Error)
	assert.EqualValues(t, 2, events)
	assert.Equal(t, 1, loadItem(t, client, first.ID).EscalationCount)
}
