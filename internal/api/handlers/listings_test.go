package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"truckmarket/internal/core"
	"truckmarket/internal/types"
	"truckmarket/internal/visibility"
)

// =============================================================================
// Mock Implementations for Listing Handler
// =============================================================================

type mockListingStore struct {
	listings map[string]*types.Listing

	lastFilter types.ListingFilter
	deleted    []string
}

func (m *mockListingStore) GetByID(_ context.Context, id string) (*types.Listing, error) {
	if l, ok := m.listings[id]; ok {
		return l, nil
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundListing, "listing not found", nil)
}

func (m *mockListingStore) List(_ context.Context, filter types.ListingFilter) ([]types.Listing, error) {
	m.lastFilter = filter
	out := make([]types.Listing, 0, len(m.listings))
	for _, l := range m.listings {
		out = append(out, *l)
	}
	return out, nil
}

func (m *mockListingStore) Delete(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

type mockAdmitter struct {
	createFn func(ctx context.Context, l *types.Listing) error
	updateFn func(ctx context.Context, id, sellerID string, patch types.ListingPatch) (*types.Listing, error)

	created   *types.Listing
	lastPatch types.ListingPatch
}

func (m *mockAdmitter) AdmitAndCreate(ctx context.Context, l *types.Listing) error {
	m.created = l
	if m.createFn != nil {
		return m.createFn(ctx, l)
	}
	return nil
}

func (m *mockAdmitter) AdmitAndUpdate(ctx context.Context, id, sellerID string, patch types.ListingPatch) (*types.Listing, error) {
	m.lastPatch = patch
	if m.updateFn != nil {
		return m.updateFn(ctx, id, sellerID, patch)
	}
	return &types.Listing{ID: id, SellerID: sellerID}, nil
}

// =============================================================================
// Test Helpers
// =============================================================================

type listingFixture struct {
	store    *mockListingStore
	admitter *mockAdmitter
	sellers  *mockSellers
	plans    *mockPlans
	notifier *mockNotifier
	accounts *accountDirectory
	router   chi.Router
}

func newListingFixture() *listingFixture {
	f := &listingFixture{
		store:    &mockListingStore{listings: map[string]*types.Listing{}},
		admitter: &mockAdmitter{},
		sellers: (&mockSellers{}).withSeller(&types.Seller{
			ID:         "sel_1",
			UserID:     "usr_1",
			Email:      "seller@example.com",
			Name:       "Hauler Joe",
			Phone:      "555-0100",
			SellerType: types.SellerPrivate,
		}),
		plans:    &mockPlans{},
		notifier: &mockNotifier{},
		accounts: &accountDirectory{},
	}
	h := NewListingHandler(ListingHandlerConfig{
		Listings:      f.store,
		Admission:     f.admitter,
		Plans:         f.plans,
		Sellers:       f.sellers,
		Notifier:      f.notifier,
		EmailGate:     NewEmailGate(f.accounts, false),
		Validator:     core.NewValidator(nil),
		Clock:         types.FixedClock{T: testNow},
		PublicBaseURL: "https://trucks.example.com/",
	})
	r := chi.NewRouter()
	h.RegisterRoutes(r, passThrough)
	f.router = r
	return f
}

func (f *listingFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func validListingBody() map[string]any {
	return map[string]any{
		"year":  2019,
		"make":  "Freightliner",
		"model": "Cascadia",
		"price": 65000,
	}
}

// =============================================================================
// Tests: Create
// =============================================================================

func TestListingHandler_Create_Success(t *testing.T) {
	f := newListingFixture()

	rr := f.do(newRequest(t, userCtx("usr_1", "seller@example.com"), http.MethodPost, "/listings", validListingBody()))

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var resp CreatedResponse
	decodeData(t, rr, &resp)
	assert.Regexp(t, `^lst_`, resp.ID)

	require.NotNil(t, f.admitter.created)
	assert.Equal(t, "sel_1", f.admitter.created.SellerID)
	assert.Equal(t, types.ListingAvailable, f.admitter.created.Status, "status defaults to available")
	assert.Equal(t, testNow, f.admitter.created.CreatedAt)

	require.Len(t, f.notifier.sent, 1)
	email := f.notifier.sent[0]
	assert.Equal(t, types.EmailTruckListed, email.Kind)
	assert.Equal(t, "seller@example.com", email.To)
	assert.Equal(t, "2019 Freightliner Cascadia", email.Data["truckName"])
	assert.Equal(t, "https://trucks.example.com/truck/"+resp.ID, email.Data["truckUrl"])
}

func TestListingHandler_Create_LimitReached(t *testing.T) {
	f := newListingFixture()
	f.admitter.createFn = func(context.Context, *types.Listing) error {
		return visibility.CanAdmit(1, 1, types.ListingAvailable).Err()
	}

	rr := f.do(newRequest(t, userCtx("usr_1", "seller@example.com"), http.MethodPost, "/listings", validListingBody()))

	assertErrorCode(t, rr, http.StatusForbidden, types.ErrCodeLimitListingReached)
	assert.Empty(t, f.notifier.sent, "no email for a rejected listing")
}

func TestListingHandler_Create_EmailNotVerified(t *testing.T) {
	f := newListingFixture()
	f.accounts.unverified = []string{"usr_1"}

	rr := f.do(newRequest(t, userCtx("usr_1", "seller@example.com"), http.MethodPost, "/listings", validListingBody()))

	assertErrorCode(t, rr, http.StatusForbidden, types.ErrCodeAuthEmailNotVerified)
	assert.Nil(t, f.admitter.created)
	assert.Empty(t, f.notifier.sent)
}

func TestListingHandler_Create_NoProfile(t *testing.T) {
	f := newListingFixture()

	rr := f.do(newRequest(t, userCtx("usr_other", "other@example.com"), http.MethodPost, "/listings", validListingBody()))

	assertErrorCode(t, rr, http.StatusBadRequest, types.ErrCodeProfileIncomplete)
	assert.Nil(t, f.admitter.created)
}

func TestListingHandler_Create_IncompleteProfile(t *testing.T) {
	f := newListingFixture()
	f.sellers.withSeller(&types.Seller{ID: "sel_2", UserID: "usr_2", Name: "No Phone", SellerType: types.SellerDealer})

	rr := f.do(newRequest(t, userCtx("usr_2", "two@example.com"), http.MethodPost, "/listings", validListingBody()))

	assertErrorCode(t, rr, http.StatusBadRequest, types.ErrCodeProfileIncomplete)
}

func TestListingHandler_Create_NotOwner(t *testing.T) {
	f := newListingFixture()
	body := validListingBody()
	body["seller_id"] = "sel_1"

	rr := f.do(newRequest(t, userCtx("usr_intruder", "x@example.com"), http.MethodPost, "/listings", body))

	assertErrorCode(t, rr, http.StatusForbidden, types.ErrCodePermissionOwner)
}

func TestListingHandler_Create_PhotoLimit(t *testing.T) {
	f := newListingFixture()
	body := validListingBody()
	photos := make([]string, visibility.FreePhotoLimit+1)
	for i := range photos {
		photos[i] = "https://cdn.example.com/p.jpg"
	}
	body["photos"] = photos

	rr := f.do(newRequest(t, userCtx("usr_1", "seller@example.com"), http.MethodPost, "/listings", body))

	assertErrorCode(t, rr, http.StatusBadRequest, types.ErrCodeValidationPhotoLimit)
	assert.EqualValues(t, visibility.FreePhotoLimit, errorBody(t, rr).Details["limit"])
}

func TestListingHandler_Create_PaidSellerGetsMorePhotos(t *testing.T) {
	f := newListingFixture()
	f.plans.plans = map[string]*types.SellerPlan{
		"sel_1": {SellerID: "sel_1", PlanType: types.TierPro},
	}
	body := validListingBody()
	photos := make([]string, visibility.FreePhotoLimit+1)
	for i := range photos {
		photos[i] = "https://cdn.example.com/p.jpg"
	}
	body["photos"] = photos

	rr := f.do(newRequest(t, userCtx("usr_1", "seller@example.com"), http.MethodPost, "/listings", body))

	assert.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
}

func TestListingHandler_Create_MissingField(t *testing.T) {
	f := newListingFixture()
	body := validListingBody()
	delete(body, "make")

	rr := f.do(newRequest(t, userCtx("usr_1", "seller@example.com"), http.MethodPost, "/listings", body))

	assertErrorCode(t, rr, http.StatusBadRequest, types.ErrCodeValidationMissingField)
}

func TestListingHandler_Create_InvalidStatus(t *testing.T) {
	f := newListingFixture()
	body := validListingBody()
	body["status"] = "archived"

	rr := f.do(newRequest(t, userCtx("usr_1", "seller@example.com"), http.MethodPost, "/listings", body))

	assertErrorCode(t, rr, http.StatusBadRequest, types.ErrCodeValidationInvalidStatus)
}

// =============================================================================
// Tests: Update and Delete
// =============================================================================

func TestListingHandler_Update_PassesPatch(t *testing.T) {
	f := newListingFixture()
	f.store.listings["lst_1"] = &types.Listing{ID: "lst_1", SellerID: "sel_1", Status: types.ListingSold}

	rr := f.do(newRequest(t, userCtx("usr_1", "seller@example.com"), http.MethodPatch, "/listings/lst_1",
		map[string]any{"status": "available", "photos": []string{}}))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.NotNil(t, f.admitter.lastPatch.Status)
	assert.Equal(t, types.ListingAvailable, *f.admitter.lastPatch.Status)
	assert.NotNil(t, f.admitter.lastPatch.Photos, "an explicit empty photo list clears photos")
	assert.Nil(t, f.admitter.lastPatch.Price)
}

func TestListingHandler_Update_NotOwner(t *testing.T) {
	f := newListingFixture()
	f.store.listings["lst_1"] = &types.Listing{ID: "lst_1", SellerID: "sel_1"}

	rr := f.do(newRequest(t, userCtx("usr_9", "nine@example.com"), http.MethodPatch, "/listings/lst_1",
		map[string]any{"price": 1000}))

	assertErrorCode(t, rr, http.StatusForbidden, types.ErrCodePermissionOwner)
}

func TestListingHandler_Delete(t *testing.T) {
	f := newListingFixture()
	f.store.listings["lst_1"] = &types.Listing{ID: "lst_1", SellerID: "sel_1"}

	rr := f.do(newRequest(t, userCtx("usr_9", "nine@example.com"), http.MethodDelete, "/listings/lst_1", nil))
	assertErrorCode(t, rr, http.StatusForbidden, types.ErrCodePermissionOwner)
	assert.Empty(t, f.store.deleted)

	rr = f.do(newRequest(t, adminCtx(), http.MethodDelete, "/listings/lst_1", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, []string{"lst_1"}, f.store.deleted)
}

// =============================================================================
// Tests: Public reads
// =============================================================================

func TestListingHandler_List_FiltersAvailable(t *testing.T) {
	f := newListingFixture()
	f.store.listings["lst_1"] = &types.Listing{ID: "lst_1", SellerID: "sel_1", Status: types.ListingAvailable}

	rr := f.do(newRequest(t, nil, http.MethodGet, "/listings?make=Volvo&seller_type=dealer&min_price=1000", nil))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, types.ListingAvailable, f.store.lastFilter.Status)
	assert.Equal(t, "Volvo", f.store.lastFilter.Make)
	assert.Equal(t, types.SellerDealer, f.store.lastFilter.SellerType)
	require.NotNil(t, f.store.lastFilter.MinPrice)
	assert.Equal(t, 1000.0, *f.store.lastFilter.MinPrice)

	var views []visibility.ListingView
	decodeData(t, rr, &views)
	require.Len(t, views, 1)
	require.NotNil(t, views[0].Seller)
	assert.Equal(t, "Hauler Joe", views[0].Seller.Name)
}

func TestListingHandler_List_BadFilter(t *testing.T) {
	f := newListingFixture()

	rr := f.do(newRequest(t, nil, http.MethodGet, "/listings?max_price=cheap", nil))
	assertErrorCode(t, rr, http.StatusBadRequest, types.ErrCodeValidationInvalidInput)

	rr = f.do(newRequest(t, nil, http.MethodGet, "/listings?seller_type=broker", nil))
	assertErrorCode(t, rr, http.StatusBadRequest, types.ErrCodeValidationInvalidInput)
}

func TestListingHandler_List_Paginates(t *testing.T) {
	f := newListingFixture()
	for i := 1; i <= 3; i++ {
		id := fmt.Sprintf("lst_%d", i)
		f.store.listings[id] = &types.Listing{
			ID:        id,
			SellerID:  "sel_1",
			Status:    types.ListingAvailable,
			CreatedAt: testNow.Add(-time.Duration(i) * time.Hour),
		}
	}

	rr := f.do(newRequest(t, nil, http.MethodGet, "/listings?limit=2&offset=1", nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var env struct {
		Data []visibility.ListingView `json:"data"`
		Meta types.ResponseMeta       `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	require.Len(t, env.Data, 2)
	assert.Equal(t, "lst_2", env.Data[0].ID)
	assert.Equal(t, "lst_3", env.Data[1].ID)
	require.NotNil(t, env.Meta.Pagination)
	assert.False(t, env.Meta.Pagination.HasMore)
	assert.Equal(t, 2, env.Meta.Pagination.Limit)
	assert.Equal(t, 1, env.Meta.Pagination.Offset)
	require.NotNil(t, env.Meta.Pagination.TotalItems)
	assert.Equal(t, 3, *env.Meta.Pagination.TotalItems)
}

func TestListingHandler_List_BadPage(t *testing.T) {
	f := newListingFixture()

	for _, q := range []string{"limit=0", "limit=201", "limit=ten", "offset=-1"} {
		rr := f.do(newRequest(t, nil, http.MethodGet, "/listings?"+q, nil))
		assertErrorCode(t, rr, http.StatusBadRequest, types.ErrCodeValidationInvalidInput)
	}
}

func TestListingHandler_Get_NotFound(t *testing.T) {
	f := newListingFixture()

	rr := f.do(newRequest(t, nil, http.MethodGet, "/listings/lst_missing", nil))

	assertErrorCode(t, rr, http.StatusNotFound, types.ErrCodeNotFoundListing)
}
