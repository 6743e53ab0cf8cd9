package repo

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sppg-platform/budget-engine/pkg/db/dbtest"
	"github.com/sppg-platform/budget-engine/pkg/db/models"
)

func TestBaseDB_BindsContext(t *testing.T) {
	client := dbtest.Open(t)
	base := NewBase(client.DB())

	ctx := context.WithValue(context.Background(), struct{}{}, "value")
	withCtx := base.DB(ctx)
	require.NotNil(t, withCtx.Statement)
	assert.Equal(t, ctx, withCtx.Statement.Context)

	assert.Same(t, client.DB(), base.DB(nil))
}

func TestBaseTenantScopesRows(t *testing.T) {
	client := dbtest.Open(t)
	first := dbtest.SeedTenant(t, client, "A")
	second := dbtest.SeedTenant(t, client, "B")

	for _, tenantID := range []uuid.UUID{first.ID, first.ID, second.ID} {
		item := models.ProcurementPayment{TenantID: tenantID, SupplierName: "s", InvoiceNumber: uuid.NewString()}
		require.NoError(t, client.DB().Create(&item).Error)
	}

	base := NewBase(client.DB())
	var count int64
	require.NoError(t, base.Tenant(context.Background(), first.ID).Model(&models.ProcurementPayment{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)

	var locked []models.ProcurementPayment
	require.NoError(t, base.TenantForUpdate(context.Background(), second.ID).Find(&locked).Error)
	assert.Len(t, locked, 1)
}

func TestBaseWithTxKeepsBaseOnNil(t *testing.T) {
	client := dbtest.Open(t)
	base := NewBase(client.DB())
	assert.Same(t, client.DB(), base.WithTx(nil).DB(nil))
}
