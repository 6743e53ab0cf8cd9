package tenants

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sppg-platform/budget-engine/internal/tenancy"
	"github.com/sppg-platform/budget-engine/pkg/db/dbtest"
	"github.com/sppg-platform/budget-engine/pkg/enums"
	pkgerrors "github.com/sppg-platform/budget-engine/pkg/errors"
)

func TestTenantRegistry(t *testing.T) {
	ctx := context.Background()
	client := dbtest.Open(t)
	svc, err := NewService(NewRepository(client.DB()))
	require.NoError(t, err)

	operator := tenancy.Actor{UserID: uuid.New(), Role: enums.MemberRoleSuperadmin}

	bantul, err := svc.Create(ctx, operator, CreateInput{Code: " bnt-01 ", Name: "SPPG Bantul"})
	require.NoError(t, err)
	assert.Equal(t, "BNT-01", bantul.Code)

	sleman, err := svc.Create(ctx, operator, CreateInput{Code: "SLM-02", Name: "SPPG Sleman"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, operator, CreateInput{Code: "BNT-01", Name: "dup"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	require.NoError(t, svc.SetActive(ctx, operator, sleman.ID, false))

	active, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, bantul.ID, active[0].ID)

	got, err := svc.Get(ctx, sleman.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	_, err = svc.Get(ctx, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.True(t, pkgerrors.IsCode(svc.SetActive(ctx, operator, uuid.New(), true), pkgerrors.CodeNotFound))
}

func TestTenantWritesRequireOperator(t *testing.T) {
	client := dbtest.Open(t)
	svc, err := NewService(NewRepository(client.DB()))
	require.NoError(t, err)

	head := tenancy.Actor{TenantID: uuid.New(), UserID: uuid.New(), Role: enums.MemberRoleHead}
	_, err = svc.Create(context.Background(), head, CreateInput{Code: "X", Name: "Y"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = svc.Create(context.Background(), tenancy.Actor{Role: enums.MemberRoleSuperadmin}, CreateInput{Code: "X", Name: "Y"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}
