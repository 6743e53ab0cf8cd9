package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/sppg-platform/budget-engine/pkg/errors"
)

type paymentBody struct {
	Supplier string           `json:"supplier" validate:"required,max=10"`
	Amount   decimal.Decimal  `json:"amount" validate:"money"`
	Fee      *decimal.Decimal `json:"fee" validate:"omitempty,moneynonneg"`
}

func decode(t *testing.T, body string) (paymentBody, error) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	var dest paymentBody
	err := DecodeJSONBody(req, &dest)
	return dest, err
}

func detailsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok, "details %T", typed.Details())
	return details
}

func TestDecodeJSONBodyAcceptsMoney(t *testing.T) {
	got, err := decode(t, `{"supplier":"CV Tani","amount":"1250000.50","fee":"0"}`)
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("1250000.5")))
	require.NotNil(t, got.Fee)
	assert.True(t, got.Fee.IsZero())
}

func TestDecodeJSONBodyRejectsBadMoney(t *testing.T) {
	for name, body := range map[string]string{
		"zero":            `{"supplier":"a","amount":"0"}`,
		"negative":        `{"supplier":"a","amount":"-5"}`,
		"three decimals":  `{"supplier":"a","amount":"10.125"}`,
		"too many digits": `{"supplier":"a","amount":"12345678901234567"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := decode(t, body)
			require.Error(t, err)
			assert.Contains(t, detailsOf(t, err), "amount")
		})
	}
}

func TestDecodeJSONBodyAllowsTrailingZeros(t *testing.T) {
	_, err := decode(t, `{"supplier":"a","amount":"10.500"}`)
	require.NoError(t, err)
}

func TestDecodeJSONBodyRejectsNegativeOptionalFee(t *testing.T) {
	_, err := decode(t, `{"supplier":"a","amount":"1","fee":"-1"}`)
	require.Error(t, err)
	assert.Equal(t, "must be a non-negative amount with at most 2 decimal places", detailsOf(t, err)["fee"])
}

func TestDecodeJSONBodyRejectsUnknownAndTrailing(t *testing.T) {
	_, err := decode(t, `{"supplier":"a","amount":"1","extra":true}`)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = decode(t, `{"supplier":"a","amount":"1"} {"supplier":"b"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "single JSON object")
}

func TestDecodeJSONBodyRejectsOversizedBody(t *testing.T) {
	big := `{"supplier":"` + strings.Repeat("x", MaxBodyBytes) + `","amount":"1"}`
	_, err := decode(t, big)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}
