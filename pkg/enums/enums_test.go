package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFundingSource(t *testing.T) {
	got, err := ParseFundingSource("CENTRAL_GOVERNMENT")
	require.NoError(t, err)
	assert.Equal(t, FundingSourceCentralGovernment, got)

	_, err = ParseFundingSource("central")
	assert.Error(t, err)
}

func TestDisbursementStatusTerminal(t *testing.T) {
	for _, status := range DisbursementStatuses() {
		want := status == DisbursementStatusDisbursed || status == DisbursementStatusRejected
		assert.Equal(t, want, status.IsTerminal(), status)
	}
}

func TestMemberRoleTenantManager(t *testing.T) {
	assert.True(t, MemberRoleHead.IsTenantManager())
	assert.True(t, MemberRoleAdmin.IsTenantManager())
	assert.False(t, MemberRoleAccountant.IsTenantManager())
	assert.False(t, MemberRoleSuperadmin.IsTenantManager())
}

func TestAgingBucketsOrder(t *testing.T) {
	assert.Equal(t, []AgingBucket{AgingBucketCurrent, AgingBucketDays31To60, AgingBucketDays61To90, AgingBucketOver90}, AgingBuckets())
}

func TestOutboxEnumsRoundTrip(t *testing.T) {
	for _, ev := range validOutboxEventTypes {
		parsed, err := ParseOutboxEventType(string(ev))
		require.NoError(t, err)
		assert.True(t, parsed.IsValid())
	}
	_, err := ParseOutboxAggregateType("vendor_order")
	assert.Error(t, err)
}

func TestParseIsExactAndNamesTheEnum(t *testing.T) {
	_, err := ParseApprovalDecision("approve")
	assert.EqualError(t, err, `invalid approval decision "approve"`)

	got, err := ParseApprovalDecision("REJECT")
	require.NoError(t, err)
	assert.Equal(t, ApprovalDecisionReject, got)
}

func TestEnumListsAreCopies(t *testing.T) {
	buckets := AgingBuckets()
	buckets[0] = AgingBucketOver90
	assert.Equal(t, AgingBucketCurrent, AgingBuckets()[0])
}
