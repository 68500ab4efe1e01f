package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"truckmarket/internal/types"
)

// FinancingRepository provides data access for buyers, financing_requests,
// financing_notes and financing_activity.
type FinancingRepository struct {
	pool TxBeginner
	db   DBTX
}

// NewFinancingRepository creates a FinancingRepository. pool runs the
// multi-row submission; db serves reads.
func NewFinancingRepository(pool TxBeginner, db DBTX) *FinancingRepository {
	return &FinancingRepository{pool: pool, db: db}
}

// Submit upserts the buyer by email, then stores the request and its
// "created" activity in one transaction. buyer.ID and req.BuyerID are set
// to the stored buyer's id.
func (r *FinancingRepository) Submit(ctx context.Context, buyer *types.Buyer, req *types.FinancingRequest) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO buyers (id, name, email, phone, created_at)
			 VALUES ($1, $2, LOWER($3), $4, $5)
			 ON CONFLICT (email) DO UPDATE SET
				name = EXCLUDED.name,
				phone = COALESCE(EXCLUDED.phone, buyers.phone)
			 RETURNING id`,
			buyer.ID,
			buyer.Name,
			buyer.Email,
			nilIfEmpty(buyer.Phone),
			buyer.CreatedAt,
		).Scan(&buyer.ID)
		if err != nil {
			return types.NewAppError(types.ErrCodeInternalDB, "failed to save buyer", err)
		}
		req.BuyerID = buyer.ID

		_, err = tx.Exec(ctx,
			`INSERT INTO financing_requests (id, buyer_id, truck_id, credit_score, down_payment, message,
				lender_status, lead_status, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			req.ID,
			req.BuyerID,
			nilIfEmpty(req.ListingID),
			nilIfEmpty(req.CreditScore),
			req.DownPayment,
			nilIfEmpty(req.Message),
			req.LenderStatus,
			req.LeadStatus,
			req.CreatedAt,
		)
		if err != nil {
			return types.NewAppError(types.ErrCodeInternalDB, "failed to store financing request", err)
		}

		return insertActivity(ctx, tx, req.ID, types.ActivityCreated, "", req.CreatedAt)
	})
}

// List returns financing requests newest first, joined with buyer contact
// and listing title.
func (r *FinancingRepository) List(ctx context.Context) ([]types.FinancingRequest, error) {
	rows, err := r.db.Query(ctx,
		`SELECT f.id, f.buyer_id, f.truck_id, f.credit_score, f.down_payment, f.message,
			f.lender_status, f.lead_status, f.created_at,
			b.name, b.email, t.year, t.make, t.model
		 FROM financing_requests f
		 LEFT JOIN buyers b ON b.id = f.buyer_id
		 LEFT JOIN trucks t ON t.id = f.truck_id
		 ORDER BY f.created_at DESC`,
	)
	if err != nil {
		return nil, dbError(err, "", "list financing requests")
	}
	defer rows.Close()

	out := []types.FinancingRequest{}
	for rows.Next() {
		var (
			f          types.FinancingRequest
			buyerID    *string
			listingID  *string
			credit     *string
			msg        *string
			buyerName  *string
			buyerEmail *string
			mk         *string
			model      *string
			year       *int
		)
		err := rows.Scan(
			&f.ID, &buyerID, &listingID, &credit, &f.DownPayment, &msg,
			&f.LenderStatus, &f.LeadStatus, &f.CreatedAt,
			&buyerName, &buyerEmail, &year, &mk, &model,
		)
		if err != nil {
			return nil, dbError(err, "", "scan financing request")
		}
		f.BuyerID = deref(buyerID)
		f.ListingID = deref(listingID)
		f.CreditScore = deref(credit)
		f.Message = deref(msg)
		f.BuyerName = deref(buyerName)
		f.BuyerEmail = deref(buyerEmail)
		if year != nil {
			f.ListingTitle = types.Listing{Year: *year, Make: deref(mk), Model: deref(model)}.Title()
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "", "iterate financing requests")
	}
	return out, nil
}

// UpdateLeadStatus moves a lead to status and records a status_change
// activity in the same transaction. It returns the previous status.
func (r *FinancingRepository) UpdateLeadStatus(ctx context.Context, id, status string, now time.Time) (string, error) {
	var prev string
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`SELECT lead_status FROM financing_requests WHERE id = $1 FOR UPDATE`,
			id,
		).Scan(&prev)
		if err != nil {
			return dbError(err, types.ErrCodeNotFoundFinancing, "get financing request")
		}

		if _, err := tx.Exec(ctx,
			`UPDATE financing_requests SET lead_status = $2 WHERE id = $1`,
			id, status,
		); err != nil {
			return types.NewAppError(types.ErrCodeInternalDB, "failed to update lead status", err)
		}
		return insertActivity(ctx, tx, id, types.ActivityStatusChange,
			fmt.Sprintf("Status changed from %s to %s", prev, status), now)
	})
	if err != nil {
		return "", err
	}
	return prev, nil
}

// AddNote stores an admin note on a lead and records a note_added activity.
func (r *FinancingRepository) AddNote(ctx context.Context, note *types.FinancingNote) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		var id string
		err := tx.QueryRow(ctx,
			`SELECT id FROM financing_requests WHERE id = $1`,
			note.RequestID,
		).Scan(&id)
		if err != nil {
			return dbError(err, types.ErrCodeNotFoundFinancing, "get financing request")
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO financing_notes (id, request_id, author_id, content, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			note.ID,
			note.RequestID,
			nilIfEmpty(note.AuthorID),
			note.Content,
			note.CreatedAt,
		); err != nil {
			return types.NewAppError(types.ErrCodeInternalDB, "failed to store financing note", err)
		}
		return insertActivity(ctx, tx, note.RequestID, types.ActivityNoteAdded, "Note added", note.CreatedAt)
	})
}

// ListNotes returns a lead's notes newest first.
func (r *FinancingRepository) ListNotes(ctx context.Context, requestID string) ([]types.FinancingNote, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, request_id, author_id, content, created_at
		 FROM financing_notes WHERE request_id = $1
		 ORDER BY created_at DESC`,
		requestID,
	)
	if err != nil {
		return nil, dbError(err, "", "list financing notes")
	}
	defer rows.Close()

	out := []types.FinancingNote{}
	for rows.Next() {
		var (
			n      types.FinancingNote
			author *string
		)
		if err := rows.Scan(&n.ID, &n.RequestID, &author, &n.Content, &n.CreatedAt); err != nil {
			return nil, dbError(err, "", "scan financing note")
		}
		n.AuthorID = deref(author)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "", "iterate financing notes")
	}
	return out, nil
}

// ListActivity returns a lead's history newest first.
func (r *FinancingRepository) ListActivity(ctx context.Context, requestID string) ([]types.FinancingActivity, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, request_id, activity_type, note, created_at
		 FROM financing_activity WHERE request_id = $1
		 ORDER BY created_at DESC`,
		requestID,
	)
	if err != nil {
		return nil, dbError(err, "", "list financing activity")
	}
	defer rows.Close()

	out := []types.FinancingActivity{}
	for rows.Next() {
		var (
			a    types.FinancingActivity
			note *string
		)
		if err := rows.Scan(&a.ID, &a.RequestID, &a.ActivityType, &note, &a.CreatedAt); err != nil {
			return nil, dbError(err, "", "scan financing activity")
		}
		a.Description = deref(note)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "", "iterate financing activity")
	}
	return out, nil
}

func insertActivity(ctx context.Context, q DBTX, requestID, activityType, note string, at time.Time) error {
	_, err := q.Exec(ctx,
		`INSERT INTO financing_activity (id, request_id, activity_type, note, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		"fa_"+uuid.New().String(),
		requestID,
		activityType,
		nilIfEmpty(note),
		at,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to record financing activity", err)
	}
	return nil
}
