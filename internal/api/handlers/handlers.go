// Package handlers contains the HTTP handler implementations for the
// truck marketplace API.
//
// Each handler is responsible for:
//   - Decoding and validating HTTP requests
//   - Delegating to repositories and services behind narrow interfaces
//   - Encoding responses in the standard envelope
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"truckmarket/internal/types"
	"truckmarket/internal/visibility"
)

// --- Shared Interfaces ---

// SellerFinder resolves seller profiles by id or by the account they
// belong to.
type SellerFinder interface {
	GetByID(ctx context.Context, id string) (*types.Seller, error)
	GetByUserID(ctx context.Context, userID string) (*types.Seller, error)
	GetUnlinkedByEmail(ctx context.Context, email string) (*types.Seller, error)
}

// SellerDirectory adds the bulk lookup used to attach seller cards to
// listing views.
type SellerDirectory interface {
	SellerFinder
	GetByIDs(ctx context.Context, ids []string) (map[string]types.Seller, error)
}

// PlanReader reads seller plans. A seller that never bought a plan has no
// row and is reported as nil.
type PlanReader interface {
	GetPlan(ctx context.Context, sellerID string) (*types.SellerPlan, error)
	GetPlans(ctx context.Context, sellerIDs []string) (map[string]*types.SellerPlan, error)
}

// Notifier queues a transactional email.
type Notifier interface {
	Notify(ctx context.Context, kind types.EmailKind, to string, data map[string]any) error
}

// --- Helpers ---

// requireActor returns the authenticated caller. Routes behind RequireAuth
// always have one; the check keeps handlers safe when mounted elsewhere.
func requireActor(r *http.Request) (types.Actor, error) {
	actor, ok := types.GetActor(r.Context())
	if !ok || actor.ID == "" {
		return types.Actor{}, types.NewAppError(types.ErrCodeAuthTokenMissing, "Authentication required", nil)
	}
	return actor, nil
}

// sellerFor finds the caller's seller profile: the one linked to the
// account, or else an unlinked legacy profile registered under the same
// email. It returns nil without error when the caller has no profile.
func sellerFor(ctx context.Context, sellers SellerFinder, actor types.Actor) (*types.Seller, error) {
	s, err := sellers.GetByUserID(ctx, actor.ID)
	if err == nil {
		return s, nil
	}
	if !isNotFound(err) {
		return nil, err
	}
	if actor.Email == "" {
		return nil, nil
	}
	s, err = sellers.GetUnlinkedByEmail(ctx, actor.Email)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// ownsSeller reports whether actor controls s. Legacy profiles without an
// account are matched by email, ignoring case.
func ownsSeller(s *types.Seller, actor types.Actor) bool {
	if s.UserID != "" {
		return s.UserID == actor.ID
	}
	return s.Email != "" && strings.EqualFold(s.Email, actor.Email)
}

func profileIncomplete() error {
	return types.NewAppError(types.ErrCodeProfileIncomplete,
		"Complete your seller profile (phone and seller type) first", nil)
}

func isNotFound(err error) bool {
	var appErr *types.AppError
	return errors.As(err, &appErr) && strings.HasPrefix(string(appErr.Code), "not_found_")
}

// notifyQuietly sends an email and logs instead of failing the request.
func notifyQuietly(ctx context.Context, logger *slog.Logger, n Notifier, kind types.EmailKind, to string, data map[string]any) {
	if n == nil || to == "" {
		return
	}
	if err := n.Notify(ctx, kind, to, data); err != nil {
		logger.WarnContext(ctx, "email notification failed", "kind", kind, "error", err)
	}
}

// enrichListings builds ranked views for listings, loading the plans and
// seller cards they reference concurrently. A nil directory skips cards.
func enrichListings(
	ctx context.Context,
	listings []types.Listing,
	plans PlanReader,
	sellers SellerDirectory,
	now time.Time,
) ([]visibility.ListingView, error) {
	views, err := buildViews(ctx, listings, plans, sellers, now)
	if err != nil {
		return nil, err
	}
	return visibility.RankViews(views), nil
}

// buildViews is enrichListings without the ranking; views keep input order.
func buildViews(
	ctx context.Context,
	listings []types.Listing,
	plans PlanReader,
	sellers SellerDirectory,
	now time.Time,
) ([]visibility.ListingView, error) {
	if len(listings) == 0 {
		return []visibility.ListingView{}, nil
	}
	ids := sellerIDs(listings)

	var (
		planMap   map[string]*types.SellerPlan
		sellerMap map[string]types.Seller
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		planMap, err = plans.GetPlans(gctx, ids)
		return err
	})
	if sellers != nil {
		g.Go(func() error {
			var err error
			sellerMap, err = sellers.GetByIDs(gctx, ids)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	views := visibility.Enrich(listings, planMap, now)
	visibility.WithSellers(views, sellerMap)
	return views, nil
}

// sellerIDs returns the distinct seller ids of listings in first-seen
// order.
func sellerIDs(listings []types.Listing) []string {
	seen := make(map[string]struct{}, len(listings))
	out := make([]string, 0, len(listings))
	for _, l := range listings {
		if _, ok := seen[l.SellerID]; ok {
			continue
		}
		seen[l.SellerID] = struct{}{}
		out = append(out, l.SellerID)
	}
	return out
}

func clockOrReal(c types.Clock) types.Clock {
	if c == nil {
		return types.RealClock{}
	}
	return c
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
