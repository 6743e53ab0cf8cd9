package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sppg-platform/budget-engine/pkg/enums"
	pkgerrors "github.com/sppg-platform/budget-engine/pkg/errors"
)

func TestParseQueryIntBounds(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=500", nil)
	_, err := ParseQueryInt(r, "limit", 50, 1, 200)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	v, err := ParseQueryInt(r, "limit", 50, 1, 200)
	require.NoError(t, err)
	assert.Equal(t, 50, v)
}

func TestParseDateQuery(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?as_of=2025-06-30", nil)
	got, err := ParseDateQuery(r, "as_of")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), *got)

	r = httptest.NewRequest(http.MethodGet, "/?as_of=30-06-2025", nil)
	_, err = ParseDateQuery(r, "as_of")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	got, err = ParseDateQuery(r, "as_of")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	r := httptest.NewRequest(http.MethodGet, "/x/"+id.String(), nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id.String())
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))

	got, err := ParseUUIDParam(r, "id")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ParseUUIDParam(r, "missing")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParseEnumQuery(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?status=DRAFT", nil)
	got, err := ParseEnumQuery(r, "status", enums.ParseDisbursementStatus)
	require.NoError(t, err)
	assert.Equal(t, enums.DisbursementStatusDraft, *got)

	r = httptest.NewRequest(http.MethodGet, "/?status=bogus", nil)
	_, err = ParseEnumQuery(r, "status", enums.ParseDisbursementStatus)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
