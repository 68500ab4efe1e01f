package db

import (
	"context"
	"time"

	"truckmarket/internal/types"
)

// StatsRepository answers the aggregate queries of the admin dashboard.
// Featured and paid-seller counts are not here; they depend on "now" and are
// derived from listings and plans in Go.
type StatsRepository struct {
	db DBTX
}

// NewStatsRepository creates a new StatsRepository backed by the given
// database connection (pool or transaction).
func NewStatsRepository(db DBTX) *StatsRepository {
	return &StatsRepository{db: db}
}

// CountListings counts every listing regardless of status.
func (r *StatsRepository) CountListings(ctx context.Context) (int, error) {
	return r.count(ctx, "count listings", `SELECT COUNT(*) FROM trucks`)
}

// CountFinancingRequests counts every financing lead.
func (r *StatsRepository) CountFinancingRequests(ctx context.Context) (int, error) {
	return r.count(ctx, "count financing requests", `SELECT COUNT(*) FROM financing_requests`)
}

// CountRunningAds counts approved ads whose window contains day.
func (r *StatsRepository) CountRunningAds(ctx context.Context, day time.Time) (int, error) {
	return r.count(ctx, "count running ads",
		`SELECT COUNT(*) FROM ads WHERE is_active = true AND start_date <= $1::date AND end_date >= $1::date`,
		day.UTC().Format(time.DateOnly),
	)
}

// Revenue sums recorded payments by type. Renewals count as seller plan
// revenue.
func (r *StatsRepository) Revenue(ctx context.Context) (types.RevenueStats, error) {
	var out types.RevenueStats
	rows, err := r.db.Query(ctx,
		`SELECT payment_type, COALESCE(SUM(amount), 0) FROM payments GROUP BY payment_type`,
	)
	if err != nil {
		return out, dbError(err, "", "sum revenue")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			kind  string
			total float64
		)
		if err := rows.Scan(&kind, &total); err != nil {
			return out, dbError(err, "", "scan revenue")
		}
		switch types.PaymentType(kind) {
		case types.PaymentBoost:
			out.Boost += total
		case types.PaymentSellerPlan, types.PaymentSellerPlanRenewal:
			out.SellerPlan += total
		case types.PaymentAd:
			out.Ad += total
		}
		out.Total += total
	}
	if err := rows.Err(); err != nil {
		return out, dbError(err, "", "iterate revenue")
	}
	return out, nil
}

func (r *StatsRepository) count(ctx context.Context, what, query string, args ...any) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, dbError(err, "", what)
	}
	return n, nil
}
