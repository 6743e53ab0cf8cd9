package disbursements

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sppg-platform/budget-engine/internal/ledger"
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
	head   tenancy.Actor
}

func mustTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return t
}

func strPtr(v string) *string { return &v }

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := dbtest.Open(t)
	tenant := dbtest.SeedTenant(t, client, "YOG-07")
	logg := logger.New(logger.Options{ServiceName: "disbursements-test", Output: io.Discard})
	emitter := outbox.NewService(outbox.NewRepository(client.DB()), nil)
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(client.DB()), client, emitter, nil, logg)
	require.NoError(t, err)
	svc, err := NewService(NewRepository(client.DB()), ledgerSvc, client, emitter, logg, decimal.RequireFromString("0.01"))
	require.NoError(t, err)
	return fixture{
		client: client,
		svc:    svc,
		head:   tenancy.Actor{TenantID: tenant.ID, UserID: uuid.New(), Role: enums.MemberRoleHead},
	}
}

func draftInput(programID *uuid.UUID) DraftInput {
	return DraftInput{
		ProgramID:             programID,
		OperationalPeriod:     "January - March 2025",
		TotalBeneficiaries:    3000,
		RequestedAmount:       decimal.NewFromInt(1000000),
		FoodCost:              decimal.NewFromInt(700000),
		OperationalCost:       decimal.NewFromInt(150000),
		TransportCost:         decimal.NewFromInt(100000),
		UtilityCost:           decimal.NewFromInt(25000),
		StaffCost:             decimal.NewFromInt(20000),
		OtherCost:             decimal.NewFromInt(5000),
		ProposalDocumentURL:   strPtr("https://docs.example/proposal.pdf"),
		BudgetPlanDocumentURL: strPtr("https://docs.example/rab.pdf"),
	}
}

// fullInput satisfies every guard so only the state table decides.
func fullInput() TransitionInput {
	approvedAt := mustTime("2025-02-10T00:00:00Z")
	disbursedAt := mustTime("2025-02-20T00:00:00Z")
	amount := decimal.NewFromInt(950000)
	return TransitionInput{
		RequestNumber:         strPtr("BANPER/2025/001"),
		PortalURL:             strPtr("https://portal.example/req/1"),
		ApprovalNumber:        strPtr("SK-88"),
		ApprovedAt:            &approvedAt,
		ApprovingOfficialName: strPtr("Dr. Sari"),
		RejectionReason:       strPtr("incomplete"),
		RevisionNotes:         strPtr("fix transport"),
		DisbursedAmount:       &amount,
		DisbursedAt:           &disbursedAt,
		BankReference:         strPtr("TRX-991"),
		ReceivingAccount:      strPtr("BNI 1234"),
	}
}

func (f fixture) seedWithStatus(t *testing.T, status enums.DisbursementStatus) models.DisbursementRequest {
	t.Helper()
	request := models.DisbursementRequest{
		TenantID:              f.head.TenantID,
		OperationalPeriod:     "Q1",
		RequestedAmount:       decimal.NewFromInt(1000),
		FoodCost:              decimal.NewFromInt(1000),
		Status:                status,
		ProposalDocumentURL:   strPtr("p"),
		BudgetPlanDocumentURL: strPtr("b"),
		CreatedBy:             f.head.UserID,
	}
	require.NoError(t, f.client.DB().Create(&request).Error)
	return request
}

func (f fixture) status(t *testing.T, id uuid.UUID) enums.DisbursementStatus {
	t.Helper()
	var request models.DisbursementRequest
	require.NoError(t, f.client.DB().First(&request, "id = ?", id).Error)
	return request.Status
}

func TestDisallowedTransitionsKeepState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, from := range enums.DisbursementStatuses() {
		for _, to := range enums.DisbursementStatuses() {
			if CanTransition(from, to) {
				continue
			}
			t.Run(fmt.Sprintf("%s_to_%s", from, to), func(t *testing.T) {
				request := f.seedWithStatus(t, from)
				_, err := f.svc.Transition(ctx, f.head, request.ID, to, fullInput())
				require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidStateTransition), "got %v", err)
				assert.Equal(t, map[string]string{"current": string(from), "attempted": string(to)}, pkgerrors.As(err).Details())
				assert.Equal(t, from, f.status(t, request.ID))
			})
		}
	}
}

func TestPermittedTransitionsSucceedForHead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, from := range enums.DisbursementStatuses() {
		for _, to := range NextStatuses(from) {
			request := f.seedWithStatus(t, from)
			updated, err := f.svc.Transition(ctx, f.head, request.ID, to, fullInput())
			require.NoError(t, err, "%s -> %s", from, to)
			assert.Equal(t, to, updated.Status)
			assert.Equal(t, to, f.status(t, request.ID))
		}
	}
}

func TestFullLifecycleFundsProgram(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	programID := uuid.New()
	accountant := f.head
	accountant.UserID = uuid.New()
	accountant.Role = enums.MemberRoleAccountant

	request, err := f.svc.Create(ctx, accountant, draftInput(&programID))
	require.NoError(t, err)
	assert.Equal(t, enums.DisbursementStatusDraft, request.Status)

	_, err = f.svc.Transition(ctx, accountant, request.ID, enums.DisbursementStatusSubmitted, TransitionInput{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	submitted, err := f.svc.Transition(ctx, f.head, request.ID, enums.DisbursementStatusSubmitted, TransitionInput{
		RequestNumber: strPtr("BANPER/2025/014"),
		PortalURL:     strPtr("https://portal.example/14"),
	})
	require.NoError(t, err)
	require.NotNil(t, submitted.SubmittedAt)
	assert.Equal(t, "BANPER/2025/014", *submitted.RequestNumber)

	_, err = f.svc.Transition(ctx, accountant, request.ID, enums.DisbursementStatusUnderReview, TransitionInput{})
	require.NoError(t, err)

	_, err = f.svc.Transition(ctx, f.head, request.ID, enums.DisbursementStatusApproved, TransitionInput{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, enums.DisbursementStatusUnderReview, f.status(t, request.ID))

	approvedAt := mustTime("2025-03-03T00:00:00Z")
	approved, err := f.svc.Transition(ctx, f.head, request.ID, enums.DisbursementStatusApproved, TransitionInput{
		ApprovalNumber:        strPtr("SK-2025-3"),
		ApprovedAt:            &approvedAt,
		ApprovingOfficialName: strPtr("Budi Santoso"),
	})
	require.NoError(t, err)
	require.NotNil(t, approved.AllocationID)

	var allocation models.BudgetAllocation
	require.NoError(t, f.client.DB().First(&allocation, "id = ?", *approved.AllocationID).Error)
	assert.Equal(t, programID, allocation.ProgramID)
	assert.Equal(t, enums.FundingSourceCentralGovernment, allocation.Source)
	assert.Equal(t, 2025, allocation.FiscalYear)
	assert.True(t, allocation.AllocatedAmount.Equal(decimal.NewFromInt(1000000)))
	assert.True(t, allocation.RemainingAmount.Equal(decimal.NewFromInt(1000000)))

	partial := decimal.NewFromInt(900000)
	disbursedAt := mustTime("2025-03-10T00:00:00Z")
	disbursed, err := f.svc.Transition(ctx, accountant, request.ID, enums.DisbursementStatusDisbursed, TransitionInput{
		DisbursedAmount:  &partial,
		DisbursedAt:      &disbursedAt,
		BankReference:    strPtr("TRX-77"),
		ReceivingAccount: strPtr("BRI 8899"),
	})
	require.NoError(t, err)
	require.True(t, disbursed.DisbursedAmount.Valid)
	assert.True(t, disbursed.DisbursedAmount.Decimal.Equal(partial))

	var events int64
	require.NoError(t, f.client.DB().Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventDisbursementTransitioned).Count(&events).Error)
	assert.EqualValues(t, 4, events)
}

func TestSecondApprovalTopsUpExistingAllocation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	programID := uuid.New()

	approve := func() *models.DisbursementRequest {
		request, err := f.svc.Create(ctx, f.head, draftInput(&programID))
		require.NoError(t, err)
		_, err = f.svc.Transition(ctx, f.head, request.ID, enums.DisbursementStatusSubmitted, TransitionInput{})
		require.NoError(t, err)
		approved, err := f.svc.Transition(ctx, f.head, request.ID, enums.DisbursementStatusApproved, fullInput())
		require.NoError(t, err)
		return approved
	}
	first := approve()
	second := approve()
	require.Equal(t, *first.AllocationID, *second.AllocationID)

	var allocation models.BudgetAllocation
	require.NoError(t, f.client.DB().First(&allocation, "id = ?", *first.AllocationID).Error)
	assert.True(t, allocation.AllocatedAmount.Equal(decimal.NewFromInt(2000000)))
}

func TestApprovalWithoutProgramLeavesLedgerAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	request, err := f.svc.Create(ctx, f.head, draftInput(nil))
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, f.head, request.ID, enums.DisbursementStatusSubmitted, TransitionInput{})
	require.NoError(t, err)
	approved, err := f.svc.Transition(ctx, f.head, request.ID, enums.DisbursementStatusApproved, fullInput())
	require.NoError(t, err)
	assert.Nil(t, approved.AllocationID)

	var count int64
	require.NoError(t, f.client.DB().Model(&models.BudgetAllocation{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSubmitGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	drifting := draftInput(nil)
	drifting.FoodCost = decimal.NewFromInt(800000)
	request, err := f.svc.Create(ctx, f.head, drifting)
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, f.head, request.ID, enums.DisbursementStatusSubmitted, TransitionInput{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	noDocs := draftInput(nil)
	noDocs.ProposalDocumentURL = nil
	request, err = f.svc.Create(ctx, f.head, noDocs)
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, f.head, request.ID, enums.DisbursementStatusSubmitted, TransitionInput{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = f.svc.Transition(ctx, f.head, request.ID, enums.DisbursementStatusSubmitted, TransitionInput{
		ProposalDocumentURL: strPtr("https://docs.example/late-proposal.pdf"),
	})
	require.NoError(t, err)

	noPeriod := draftInput(nil)
	noPeriod.OperationalPeriod = " "
	request, err = f.svc.Create(ctx, f.head, noPeriod)
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, f.head, request.ID, enums.DisbursementStatusSubmitted, TransitionInput{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, enums.DisbursementStatusDraft, f.status(t, request.ID))
}

func TestRevisionLoopReopensDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	request := f.seedWithStatus(t, enums.DisbursementStatusUnderReview)

	_, err := f.svc.Transition(ctx, f.head, request.ID, enums.DisbursementStatusRevisionRequired, TransitionInput{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Transition(ctx, f.head, request.ID, enums.DisbursementStatusRevisionRequired, TransitionInput{RevisionNotes: strPtr("split transport")})
	require.NoError(t, err)

	_, err = f.svc.UpdateDraft(ctx, f.head, request.ID, draftInput(nil))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidStateTransition))

	_, err = f.svc.Transition(ctx, f.head, request.ID, enums.DisbursementStatusDraft, TransitionInput{})
	require.NoError(t, err)

	edited, err := f.svc.UpdateDraft(ctx, f.head, request.ID, draftInput(nil))
	require.NoError(t, err)
	assert.True(t, edited.RequestedAmount.Equal(decimal.NewFromInt(1000000)))
}

func TestDisbursementTenantIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	request := f.seedWithStatus(t, enums.DisbursementStatusSubmitted)

	other := dbtest.SeedTenant(t, f.client, "ELSE")
	intruder := tenancy.Actor{TenantID: other.ID, UserID: uuid.New(), Role: enums.MemberRoleHead}

	_, err := f.svc.Get(ctx, intruder, request.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	_, err = f.svc.Transition(ctx, intruder, request.ID, enums.DisbursementStatusRejected, fullInput())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.Equal(t, enums.DisbursementStatusSubmitted, f.status(t, request.ID))

	status := enums.DisbursementStatusSubmitted
	mine, err := f.svc.List(ctx, f.head, ListFilter{Status: &status})
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	theirs, err := f.svc.List(ctx, intruder, ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, theirs)
}

func TestCreateDraftValidation(t *testing.T) {
	f := newFixture(t)
	input := draftInput(nil)
	input.RequestedAmount = decimal.NewFromInt(-1)
	_, err := f.svc.Create(context.Background(), f.head, input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	viewer := f.head
	viewer.Role = enums.MemberRoleViewer
	_, err = f.svc.Create(context.Background(), viewer, draftInput(nil))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}
