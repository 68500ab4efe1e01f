package handlers

import (
	"context"
	"encoding/json"
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

type mockStats struct {
	adsDay time.Time
}

func (m *mockStats) CountListings(context.Context) (int, error)          { return 42, nil }
func (m *mockStats) CountFinancingRequests(context.Context) (int, error) { return 7, nil }

func (m *mockStats) CountRunningAds(_ context.Context, day time.Time) (int, error) {
	m.adsDay = day
	return 3, nil
}

func (m *mockStats) Revenue(context.Context) (types.RevenueStats, error) {
	return types.RevenueStats{Boost: 20, SellerPlan: 98, Ad: 50, Total: 168}, nil
}

type featureCall struct {
	id       string
	featured bool
	until    *time.Time
}

type mockAdminListings struct {
	all      []types.Listing
	featured []types.Listing
	features []featureCall
	deleted  []string
}

func (m *mockAdminListings) List(context.Context, types.ListingFilter) ([]types.Listing, error) {
	return m.all, nil
}

func (m *mockAdminListings) ListFeatured(context.Context) ([]types.Listing, error) {
	return m.featured, nil
}

func (m *mockAdminListings) SetFeatured(_ context.Context, id string, featured bool, until *time.Time, _ time.Time) error {
	m.features = append(m.features, featureCall{id: id, featured: featured, until: until})
	return nil
}

func (m *mockAdminListings) Delete(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

type mockAdManager struct {
	ads     map[string]*types.Ad
	active  map[string]bool
	deleted []string
}

func (m *mockAdManager) ListAll(context.Context) ([]types.Ad, error) {
	out := make([]types.Ad, 0, len(m.ads))
	for _, a := range m.ads {
		out = append(out, *a)
	}
	return out, nil
}

func (m *mockAdManager) Create(_ context.Context, ad *types.Ad) error {
	m.ads[ad.ID] = ad
	return nil
}

func (m *mockAdManager) Update(_ context.Context, ad *types.Ad) error {
	if _, ok := m.ads[ad.ID]; !ok {
		return types.NewAppError(types.ErrCodeNotFoundAd, "ad not found", nil)
	}
	m.ads[ad.ID] = ad
	return nil
}

func (m *mockAdManager) Delete(_ context.Context, id string) error {
	if _, ok := m.ads[id]; !ok {
		return types.NewAppError(types.ErrCodeNotFoundAd, "ad not found", nil)
	}
	delete(m.ads, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockAdManager) SetActive(_ context.Context, id string, active bool) error {
	if id == "ad_missing" {
		return types.NewAppError(types.ErrCodeNotFoundAd, "ad not found", nil)
	}
	m.active[id] = active
	return nil
}

type statusCall struct {
	id     string
	status string
	now    time.Time
}

type mockFinancingDesk struct {
	statuses []statusCall
	notes    []*types.FinancingNote
}

func (m *mockFinancingDesk) List(context.Context) ([]types.FinancingRequest, error) {
	return []types.FinancingRequest{{ID: "fin_1", BuyerName: "Dana", LenderStatus: types.LenderStatusPending}}, nil
}

func (m *mockFinancingDesk) UpdateLeadStatus(_ context.Context, id, status string, now time.Time) (string, error) {
	if id != "fin_1" {
		return "", types.NewAppError(types.ErrCodeNotFoundFinancing, "financing request not found", nil)
	}
	m.statuses = append(m.statuses, statusCall{id: id, status: status, now: now})
	return types.LeadStatusNew, nil
}

func (m *mockFinancingDesk) AddNote(_ context.Context, note *types.FinancingNote) error {
	if note.RequestID != "fin_1" {
		return types.NewAppError(types.ErrCodeNotFoundFinancing, "financing request not found", nil)
	}
	m.notes = append(m.notes, note)
	return nil
}

func (m *mockFinancingDesk) ListNotes(_ context.Context, requestID string) ([]types.FinancingNote, error) {
	return []types.FinancingNote{{ID: "fn_1", RequestID: requestID, Content: "Left voicemail"}}, nil
}

func (m *mockFinancingDesk) ListActivity(_ context.Context, requestID string) ([]types.FinancingActivity, error) {
	return []types.FinancingActivity{
		{ID: "fa_2", RequestID: requestID, ActivityType: types.ActivityNoteAdded},
		{ID: "fa_1", RequestID: requestID, ActivityType: types.ActivityCreated},
	}, nil
}

type adminFixture struct {
	stats     *mockStats
	listings  *mockAdminListings
	plans     *mockPlans
	ads       *mockAdManager
	financing *mockFinancingDesk
	router    chi.Router
}

func newAdminFixture() *adminFixture {
	f := &adminFixture{
		stats:     &mockStats{},
		listings:  &mockAdminListings{},
		plans:     &mockPlans{plans: map[string]*types.SellerPlan{}},
		ads:       &mockAdManager{ads: map[string]*types.Ad{}, active: map[string]bool{}},
		financing: &mockFinancingDesk{},
	}
	h := NewAdminHandler(AdminHandlerConfig{
		Stats:     f.stats,
		Listings:  f.listings,
		Plans:     f.plans,
		Sellers:   (&mockSellers{}).withSeller(&types.Seller{ID: "sel_1", UserID: "usr_1", Name: "Joe"}),
		Ads:       f.ads,
		Financing: f.financing,
		Validator: core.NewValidator(nil),
		Clock:     types.FixedClock{T: testNow},
	})
	r := chi.NewRouter()
	h.RegisterRoutes(r, passThrough)
	f.router = r
	return f
}

func (f *adminFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func TestAdminHandler_Stats(t *testing.T) {
	f := newAdminFixture()
	future := testNow.Add(24 * time.Hour)
	past := testNow.Add(-24 * time.Hour)
	f.listings.featured = []types.Listing{
		{ID: "lst_open", IsFeatured: true},
		{ID: "lst_live", IsFeatured: true, FeaturedUntil: &future},
		{ID: "lst_lapsed", IsFeatured: true, FeaturedUntil: &past},
	}
	f.plans.plans = map[string]*types.SellerPlan{
		"sel_1": {SellerID: "sel_1", PlanType: types.TierPro, PlanExpires: &future},
		"sel_2": {SellerID: "sel_2", PlanType: types.TierDealer},
		"sel_3": {SellerID: "sel_3", PlanType: types.TierPro, PlanExpires: &past},
		"sel_4": {SellerID: "sel_4", PlanType: types.TierFree},
	}

	rr := f.do(newRequest(t, adminCtx(), http.MethodGet, "/admin/stats", nil))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var stats types.AdminStats
	decodeData(t, rr, &stats)
	assert.Equal(t, types.AdminStats{
		TotalListings:     42,
		FeaturedActive:    2,
		ProSellers:        2,
		FinancingRequests: 7,
		ActiveAds:         3,
		Revenue:           types.RevenueStats{Boost: 20, SellerPlan: 98, Ad: 50, Total: 168},
	}, stats)
	assert.Equal(t, testNow, f.stats.adsDay)
}

func TestAdminHandler_Featured(t *testing.T) {
	f := newAdminFixture()
	past := testNow.Add(-time.Hour)
	f.listings.featured = []types.Listing{
		{ID: "lst_a", SellerID: "sel_1", IsFeatured: true},
		{ID: "lst_b", SellerID: "sel_1", IsFeatured: true, FeaturedUntil: &past},
	}

	rr := f.do(newRequest(t, adminCtx(), http.MethodGet, "/admin/featured", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var views []visibility.ListingView
	decodeData(t, rr, &views)
	require.Len(t, views, 1)
	assert.Equal(t, "lst_a", views[0].ID)
	assert.True(t, views[0].IsFeaturedNow)
}

func TestAdminHandler_Feature(t *testing.T) {
	f := newAdminFixture()

	rr := f.do(newRequest(t, adminCtx(), http.MethodPut, "/admin/listings/lst_1/feature", map[string]any{"featured": true}))
	require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())

	until := testNow.Add(7 * 24 * time.Hour)
	rr = f.do(newRequest(t, adminCtx(), http.MethodPut, "/admin/listings/lst_2/feature",
		map[string]any{"featured": true, "until": until}))
	require.Equal(t, http.StatusNoContent, rr.Code)

	require.Len(t, f.listings.features, 2)
	assert.Equal(t, "lst_1", f.listings.features[0].id)
	assert.Nil(t, f.listings.features[0].until)
	require.NotNil(t, f.listings.features[1].until)
	assert.True(t, until.Equal(*f.listings.features[1].until))
}

func TestAdminHandler_DeleteListing(t *testing.T) {
	f := newAdminFixture()

	rr := f.do(newRequest(t, adminCtx(), http.MethodDelete, "/admin/listings/lst_9", nil))

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, []string{"lst_9"}, f.listings.deleted)
}

func TestAdminHandler_SetAdActive(t *testing.T) {
	f := newAdminFixture()

	rr := f.do(newRequest(t, adminCtx(), http.MethodPut, "/admin/ads/ad_1/active", map[string]any{"active": true}))
	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.True(t, f.ads.active["ad_1"])

	rr = f.do(newRequest(t, adminCtx(), http.MethodPut, "/admin/ads/ad_missing/active", map[string]any{"active": true}))
	assertErrorCode(t, rr, http.StatusNotFound, types.ErrCodeNotFoundAd)
}

func TestAdminHandler_Financing(t *testing.T) {
	f := newAdminFixture()

	rr := f.do(newRequest(t, adminCtx(), http.MethodGet, "/admin/financing", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var leads []types.FinancingRequest
	decodeData(t, rr, &leads)
	require.Len(t, leads, 1)
	assert.Equal(t, "fin_1", leads[0].ID)
}

func TestAdminHandler_Listings_Paginates(t *testing.T) {
	f := newAdminFixture()
	f.listings.all = []types.Listing{
		{ID: "lst_new", SellerID: "sel_1", Status: types.ListingAvailable, CreatedAt: testNow},
		{ID: "lst_mid", SellerID: "sel_1", Status: types.ListingSold, CreatedAt: testNow.Add(-time.Hour)},
		{ID: "lst_old", SellerID: "sel_1", Status: types.ListingPending, CreatedAt: testNow.Add(-2 * time.Hour)},
	}

	rr := f.do(newRequest(t, adminCtx(), http.MethodGet, "/admin/listings?limit=2", nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var env struct {
		Data []visibility.ListingView `json:"data"`
		Meta types.ResponseMeta       `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	require.Len(t, env.Data, 2)
	assert.Equal(t, "lst_new", env.Data[0].ID)
	require.NotNil(t, env.Meta.Pagination)
	assert.True(t, env.Meta.Pagination.HasMore)
	assert.Equal(t, 3, *env.Meta.Pagination.TotalItems)
}

func validAdBody() map[string]any {
	return map[string]any{
		"title":      "Fleet tire sale",
		"image_url":  "https://cdn.example.com/tires.png",
		"link_url":   "https://tires.example.com",
		"placement":  "homepage",
		"start_date": "2026-04-12",
		"end_date":   "2026-04-19",
	}
}

func TestAdminHandler_CreateAd(t *testing.T) {
	f := newAdminFixture()

	rr := f.do(newRequest(t, adminCtx(), http.MethodPost, "/admin/ads", validAdBody()))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var ad types.Ad
	decodeData(t, rr, &ad)
	require.Contains(t, f.ads.ads, ad.ID)
	stored := f.ads.ads[ad.ID]
	assert.Equal(t, "Fleet tire sale", stored.Title)
	assert.False(t, stored.IsActive)
	assert.Equal(t, time.Date(2026, 4, 12, 0, 0, 0, 0, time.UTC), stored.StartDate)
	assert.Equal(t, testNow, stored.CreatedAt)
}

func TestAdminHandler_CreateAd_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]any)
		code   types.ErrorCode
	}{
		{"missing title", func(b map[string]any) { delete(b, "title") }, types.ErrCodeValidationMissingField},
		{"bad image url", func(b map[string]any) { b["image_url"] = "not a url" }, types.ErrCodeValidationInvalidInput},
		{"bad date", func(b map[string]any) { b["start_date"] = "12/04/2026" }, types.ErrCodeValidationInvalidInput},
		{"ends before start", func(b map[string]any) { b["end_date"] = "2026-04-01" }, types.ErrCodeValidationInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAdminFixture()
			body := validAdBody()
			tt.mutate(body)

			rr := f.do(newRequest(t, adminCtx(), http.MethodPost, "/admin/ads", body))
			assertErrorCode(t, rr, http.StatusBadRequest, tt.code)
			assert.Empty(t, f.ads.ads)
		})
	}
}

func TestAdminHandler_UpdateAndDeleteAd(t *testing.T) {
	f := newAdminFixture()
	f.ads.ads["ad_1"] = &types.Ad{ID: "ad_1", Title: "Old"}

	body := validAdBody()
	body["is_active"] = true
	rr := f.do(newRequest(t, adminCtx(), http.MethodPut, "/admin/ads/ad_1", body))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "Fleet tire sale", f.ads.ads["ad_1"].Title)
	assert.True(t, f.ads.ads["ad_1"].IsActive)

	rr = f.do(newRequest(t, adminCtx(), http.MethodPut, "/admin/ads/ad_missing", validAdBody()))
	assertErrorCode(t, rr, http.StatusNotFound, types.ErrCodeNotFoundAd)

	rr = f.do(newRequest(t, adminCtx(), http.MethodDelete, "/admin/ads/ad_1", nil))
	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, []string{"ad_1"}, f.ads.deleted)

	rr = f.do(newRequest(t, adminCtx(), http.MethodDelete, "/admin/ads/ad_1", nil))
	assertErrorCode(t, rr, http.StatusNotFound, types.ErrCodeNotFoundAd)
}

func TestAdminHandler_ListAds(t *testing.T) {
	f := newAdminFixture()
	f.ads.ads["ad_pending"] = &types.Ad{ID: "ad_pending"}

	rr := f.do(newRequest(t, adminCtx(), http.MethodGet, "/admin/ads", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var ads []types.Ad
	decodeData(t, rr, &ads)
	require.Len(t, ads, 1)
	assert.False(t, ads[0].IsActive)
}

func TestAdminHandler_SetLeadStatus(t *testing.T) {
	f := newAdminFixture()

	rr := f.do(newRequest(t, adminCtx(), http.MethodPut, "/admin/financing/fin_1/status",
		map[string]any{"status": types.LeadStatusSentToLender}))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp LeadStatusResponse
	decodeData(t, rr, &resp)
	assert.Equal(t, LeadStatusResponse{ID: "fin_1", LeadStatus: "sent_to_lender", Previous: "new"}, resp)
	require.Len(t, f.financing.statuses, 1)
	assert.Equal(t, statusCall{id: "fin_1", status: "sent_to_lender", now: testNow}, f.financing.statuses[0])
}

func TestAdminHandler_SetLeadStatus_Rejects(t *testing.T) {
	f := newAdminFixture()

	rr := f.do(newRequest(t, adminCtx(), http.MethodPut, "/admin/financing/fin_1/status", map[string]any{"status": "won"}))
	assertErrorCode(t, rr, http.StatusBadRequest, types.ErrCodeValidationInvalidStatus)

	rr = f.do(newRequest(t, adminCtx(), http.MethodPut, "/admin/financing/fin_9/status", map[string]any{"status": "closed"}))
	assertErrorCode(t, rr, http.StatusNotFound, types.ErrCodeNotFoundFinancing)
	assert.Empty(t, f.financing.statuses)
}

func TestAdminHandler_LeadNotes(t *testing.T) {
	f := newAdminFixture()

	rr := f.do(newRequest(t, adminCtx(), http.MethodPost, "/admin/financing/fin_1/notes",
		map[string]any{"content": "  Buyer wants 60 months  "}))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.Len(t, f.financing.notes, 1)
	assert.Equal(t, "Buyer wants 60 months", f.financing.notes[0].Content)
	assert.Equal(t, "adm_1", f.financing.notes[0].AuthorID)

	rr = f.do(newRequest(t, adminCtx(), http.MethodPost, "/admin/financing/fin_1/notes", map[string]any{"content": "   "}))
	assertErrorCode(t, rr, http.StatusBadRequest, types.ErrCodeValidationMissingField)

	rr = f.do(newRequest(t, adminCtx(), http.MethodGet, "/admin/financing/fin_1/notes", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var history LeadHistoryResponse
	decodeData(t, rr, &history)
	require.Len(t, history.Notes, 1)
	require.Len(t, history.Activity, 2)
	assert.Equal(t, types.ActivityNoteAdded, history.Activity[0].ActivityType)
}
