package procurement

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/sppg-platform/budget-engine/internal/tenancy"
	"github.com/sppg-platform/budget-engine/pkg/db"
	"github.com/sppg-platform/budget-engine/pkg/db/dbtest"
	"github.com/sppg-platform/budget-engine/pkg/db/models"
	"github.com/sppg-platform/budget-engine/pkg/enums"
	pkgerrors "github.com/sppg-platform/budget-engine/pkg/errors"
	"github.com/sppg-platform/budget-engine/pkg/outbox"
)

var reportDate = time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)

type fixture struct {
	client     *db.Client
	svc        Service
	accountant tenancy.Actor
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := dbtest.Open(t)
	tenant := dbtest.SeedTenant(t, client, "KLT-03")
	svc, err := NewService(NewRepository(client.DB()), client, outbox.NewService(outbox.NewRepository(client.DB()), nil))
	require.NoError(t, err)
	svc.(*service).now = func() time.Time { return reportDate }
	return fixture{
		client:     client,
		svc:        svc,
		accountant: tenancy.Actor{TenantID: tenant.ID, UserID: uuid.New(), Role: enums.MemberRoleAccountant},
	}
}

func (f fixture) payable(t *testing.T, supplier string, amount int64, due time.Time) *models.ProcurementPayment {
	t.Helper()
	payment, err := f.svc.CreatePayable(context.Background(), f.accountant, PayableInput{
		SupplierName:  supplier,
		InvoiceNumber: "INV-" + supplier,
		Amount:        decimal.NewFromInt(amount),
		DueDate:       due,
	})
	require.NoError(t, err)
	return payment
}

func (f fixture) pay(t *testing.T, id uuid.UUID, amount int64) *models.ProcurementPayment {
	t.Helper()
	payment, err := f.svc.RecordPayment(context.Background(), f.accountant, id, PaymentInput{Amount: decimal.NewFromInt(amount)})
	require.NoError(t, err)
	return payment
}

func daysBefore(n int) time.Time { return reportDate.AddDate(0, 0, -n) }

func TestAgingReportBucketsOutstandingPayables(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rice := f.payable(t, "rice", 1000000, daysBefore(45))
	eggs := f.payable(t, "eggs", 500000, daysBefore(95))
	f.pay(t, eggs.ID, 200000)
	f.payable(t, "milk", 250000, reportDate.AddDate(0, 0, 5))
	gas := f.payable(t, "gas", 100000, daysBefore(10))
	settled := f.payable(t, "veg", 75000, daysBefore(200))
	f.pay(t, settled.ID, 75000)

	report, err := f.svc.AgingReport(ctx, f.accountant, nil)
	require.NoError(t, err)
	require.Len(t, report.Buckets, 4)

	expect := map[enums.AgingBucket]struct {
		count int
		total int64
	}{
		enums.AgingBucketCurrent:    {2, 350000},
		enums.AgingBucketDays31To60: {1, 1000000},
		enums.AgingBucketDays61To90: {0, 0},
		enums.AgingBucketOver90:     {1, 300000},
	}
	for _, bucket := range report.Buckets {
		want := expect[bucket.Bucket]
		assert.Equal(t, want.count, bucket.Count, bucket.Bucket)
		assert.True(t, bucket.Outstanding.Equal(decimal.NewFromInt(want.total)), "%s: %s", bucket.Bucket, bucket.Outstanding)
	}
	assert.Equal(t, 4, report.TotalCount)
	assert.True(t, report.TotalOutstanding.Equal(decimal.NewFromInt(1650000)))

	overdue, err := f.svc.Overdue(ctx, f.accountant, nil)
	require.NoError(t, err)
	require.Len(t, overdue, 3)
	assert.Equal(t, eggs.ID, overdue[0].Payment.ID)
	assert.Equal(t, 95, overdue[0].DaysOverdue)
	assert.Equal(t, enums.AgingBucketOver90, overdue[0].Bucket)
	assert.Equal(t, rice.ID, overdue[1].Payment.ID)
	assert.Equal(t, enums.AgingBucketDays31To60, overdue[1].Bucket)
	assert.Equal(t, gas.ID, overdue[2].Payment.ID)
	assert.Equal(t, enums.AgingBucketCurrent, overdue[2].Bucket)
}

func TestRecordPaymentSettlesPayable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	payable := f.payable(t, "rice", 500000, daysBefore(3))

	partial := f.pay(t, payable.ID, 200000)
	assert.Equal(t, enums.PaymentStatusPartial, partial.Status)
	require.NotNil(t, partial.LastPaidAt)

	_, err := f.svc.RecordPayment(ctx, f.accountant, payable.ID, PaymentInput{Amount: decimal.NewFromInt(300001)})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, map[string]string{"outstanding": "300000.00", "attempted": "300001.00"}, pkgerrors.As(err).Details())

	paid := f.pay(t, payable.ID, 300000)
	assert.Equal(t, enums.PaymentStatusPaid, paid.Status)
	assert.True(t, paid.Outstanding().IsZero())

	_, err = f.svc.RecordPayment(ctx, f.accountant, payable.ID, PaymentInput{Amount: decimal.NewFromInt(1)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	_, err = f.svc.RecordPayment(ctx, f.accountant, payable.ID, PaymentInput{Amount: decimal.RequireFromString("0.001")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	var events int64
	require.NoError(t, f.client.DB().Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventPaymentRecorded).Count(&events).Error)
	assert.EqualValues(t, 2, events)
}

func TestPayableRolesAndIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	payable := f.payable(t, "rice", 500000, daysBefore(40))

	staff := f.accountant
	staff.Role = enums.MemberRoleStaff
	_, err := f.svc.CreatePayable(ctx, staff, PayableInput{SupplierName: "x", InvoiceNumber: "y", Amount: decimal.NewFromInt(1), DueDate: reportDate})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	buyer := f.accountant
	buyer.Role = enums.MemberRoleProcurement
	_, err = f.svc.RecordPayment(ctx, buyer, payable.ID, PaymentInput{Amount: decimal.NewFromInt(1)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	other := dbtest.SeedTenant(t, f.client, "OTHER")
	outsider := tenancy.Actor{TenantID: other.ID, UserID: uuid.New(), Role: enums.MemberRoleAccountant}
	_, err = f.svc.RecordPayment(ctx, outsider, payable.ID, PaymentInput{Amount: decimal.NewFromInt(1)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	report, err := f.svc.AgingReport(ctx, outsider, nil)
	require.NoError(t, err)
	assert.Zero(t, report.TotalCount)
	assert.True(t, report.TotalOutstanding.IsZero())
}

func TestExportAgingWritesWorkbook(t *testing.T) {
	f := newFixture(t)
	f.payable(t, "rice", 1000000, daysBefore(45))
	f.payable(t, "eggs", 500000, daysBefore(95))

	var buf bytes.Buffer
	require.NoError(t, f.svc.ExportAging(context.Background(), f.accountant, nil, &buf))

	book, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer book.Close()

	summary, err := book.GetRows(summarySheet)
	require.NoError(t, err)
	require.Len(t, summary, 7)
	assert.Equal(t, []string{"As of", "2025-06-30"}, summary[0])
	assert.Equal(t, "TOTAL", summary[6][0])
	assert.Equal(t, "2", summary[6][1])

	overdue, err := book.GetRows(overdueSheet)
	require.NoError(t, err)
	require.Len(t, overdue, 3)
	assert.Equal(t, "eggs", overdue[1][0])
	assert.Equal(t, "95", overdue[1][3])
	assert.Equal(t, "OVER_90", overdue[1][4])
}
