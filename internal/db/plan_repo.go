package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"truckmarket/internal/types"
)

// PlanRepository provides data access for the seller_plans table.
type PlanRepository struct {
	db DBTX
}

// NewPlanRepository creates a new PlanRepository backed by the given
// database connection (pool or transaction).
func NewPlanRepository(db DBTX) *PlanRepository {
	return &PlanRepository{db: db}
}

const planColumns = `p.seller_id, p.plan_type, p.plan_expires, p.stripe_subscription_id, p.updated_at`

func scanPlan(row pgx.Row) (*types.SellerPlan, error) {
	var p types.SellerPlan
	var (
		planType *string
		subID    *string
	)
	if err := row.Scan(&p.SellerID, &planType, &p.PlanExpires, &subID, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.PlanType = types.Tier(deref(planType))
	if p.PlanType == "" {
		p.PlanType = types.TierFree
	}
	p.StripeSubscriptionID = deref(subID)
	return &p, nil
}

// GetPlan returns the seller's plan, or nil when the seller never had one.
func (r *PlanRepository) GetPlan(ctx context.Context, sellerID string) (*types.SellerPlan, error) {
	return getPlan(ctx, r.db, sellerID)
}

func getPlan(ctx context.Context, q DBTX, sellerID string) (*types.SellerPlan, error) {
	row := q.QueryRow(ctx, `SELECT `+planColumns+` FROM seller_plans p WHERE p.seller_id = $1`, sellerID)
	p, err := scanPlan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve seller plan", err)
	}
	return p, nil
}

// GetPlans loads the plans of the given sellers. Sellers without a plan are
// absent from the map.
func (r *PlanRepository) GetPlans(ctx context.Context, sellerIDs []string) (map[string]*types.SellerPlan, error) {
	out := make(map[string]*types.SellerPlan, len(sellerIDs))
	if len(sellerIDs) == 0 {
		return out, nil
	}
	rows, err := r.db.Query(ctx, `SELECT `+planColumns+` FROM seller_plans p WHERE p.seller_id = ANY($1)`, sellerIDs)
	if err != nil {
		return nil, dbError(err, "", "list seller plans")
	}
	return collectPlans(rows, out)
}

// ListAll returns every stored plan keyed by seller id.
func (r *PlanRepository) ListAll(ctx context.Context) (map[string]*types.SellerPlan, error) {
	rows, err := r.db.Query(ctx, `SELECT `+planColumns+` FROM seller_plans p`)
	if err != nil {
		return nil, dbError(err, "", "list seller plans")
	}
	return collectPlans(rows, make(map[string]*types.SellerPlan))
}

func collectPlans(rows pgx.Rows, out map[string]*types.SellerPlan) (map[string]*types.SellerPlan, error) {
	defer rows.Close()
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, dbError(err, "", "scan seller plan")
		}
		out[p.SellerID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "", "iterate seller plans")
	}
	return out, nil
}

// GetPlanBySubscription finds the plan a processor subscription pays for.
func (r *PlanRepository) GetPlanBySubscription(ctx context.Context, subscriptionID string) (*types.SellerPlan, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+planColumns+` FROM seller_plans p WHERE p.stripe_subscription_id = $1`,
		subscriptionID,
	)
	p, err := scanPlan(row)
	if err != nil {
		return nil, dbError(err, types.ErrCodeNotFoundSeller, "get plan by subscription")
	}
	return p, nil
}

func upsertPlan(ctx context.Context, q DBTX, p *types.SellerPlan) error {
	_, err := q.Exec(ctx,
		`INSERT INTO seller_plans (seller_id, plan_type, plan_expires, stripe_subscription_id, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (seller_id) DO UPDATE SET
			plan_type = EXCLUDED.plan_type,
			plan_expires = EXCLUDED.plan_expires,
			stripe_subscription_id = COALESCE(EXCLUDED.stripe_subscription_id, seller_plans.stripe_subscription_id),
			updated_at = EXCLUDED.updated_at`,
		p.SellerID,
		string(p.PlanType),
		p.PlanExpires,
		nilIfEmpty(p.StripeSubscriptionID),
		p.UpdatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to save seller plan", err)
	}
	return nil
}
