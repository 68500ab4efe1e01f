package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"truckmarket/internal/core"
	"truckmarket/internal/types"
)

type mockFinancingStore struct {
	buyer *types.Buyer
	req   *types.FinancingRequest
	err   error
}

func (m *mockFinancingStore) Submit(_ context.Context, buyer *types.Buyer, req *types.FinancingRequest) error {
	m.buyer = buyer
	m.req = req
	return m.err
}

func serveFinancing(t *testing.T, store *mockFinancingStore, notifier *mockNotifier, body any) *httptest.ResponseRecorder {
	t.Helper()
	h := NewFinancingHandler(store, notifier, core.NewValidator(nil), types.FixedClock{T: testNow}, "finance@example.com", nil)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, newRequest(t, nil, http.MethodPost, "/financing", body))
	return rr
}

func TestFinancingHandler_Submit(t *testing.T) {
	store := &mockFinancingStore{}
	notifier := &mockNotifier{}

	rr := serveFinancing(t, store, notifier, map[string]any{
		"name":         " Dana Driver ",
		"email":        "Dana@Example.com",
		"truck_id":     "lst_1",
		"credit_score": "700-749",
		"down_payment": 15000,
	})

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var resp CreatedResponse
	decodeData(t, rr, &resp)
	assert.Regexp(t, `^fin_`, resp.ID)

	require.NotNil(t, store.buyer)
	assert.Equal(t, "Dana Driver", store.buyer.Name)
	assert.Equal(t, "dana@example.com", store.buyer.Email)
	assert.Equal(t, types.LenderStatusPending, store.req.LenderStatus)
	assert.Equal(t, types.LeadStatusNew, store.req.LeadStatus)
	require.NotNil(t, store.req.DownPayment)
	assert.Equal(t, 15000.0, *store.req.DownPayment)

	require.Len(t, notifier.sent, 2)
	assert.Equal(t, types.EmailFinancingTeamNotice, notifier.sent[0].Kind)
	assert.Equal(t, "finance@example.com", notifier.sent[0].To)
	assert.Equal(t, types.EmailFinancingConfirmation, notifier.sent[1].Kind)
	assert.Equal(t, "dana@example.com", notifier.sent[1].To)
}

func TestFinancingHandler_EmailFailureIsQuiet(t *testing.T) {
	rr := serveFinancing(t, &mockFinancingStore{}, &mockNotifier{err: assert.AnError}, map[string]any{
		"name":  "Dana",
		"email": "dana@example.com",
	})

	assert.Equal(t, http.StatusCreated, rr.Code)
}

func TestFinancingHandler_Validation(t *testing.T) {
	store := &mockFinancingStore{}

	rr := serveFinancing(t, store, &mockNotifier{}, map[string]any{"name": "Dana", "email": "not-an-email"})

	assertErrorCode(t, rr, http.StatusBadRequest, types.ErrCodeValidationInvalidEmail)
	assert.Nil(t, store.req)
}
