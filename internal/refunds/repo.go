package refunds

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// ListFilters narrows the operator refund listing.
type ListFilters struct {
	Accepted *bool
	OrderID  *uuid.UUID
}

// RefundSummary is the operator view of a refund request.
type RefundSummary struct {
	ID        uuid.UUID `json:"id"`
	OrderID   uuid.UUID `json:"order_id"`
	RefCode   *string   `json:"ref_code,omitempty"`
	Reason    string    `json:"reason"`
	Email     string    `json:"email"`
	Accepted  bool      `json:"accepted"`
	CreatedAt time.Time `json:"created_at"`
}

// RefundList is one cursor page of refunds.
type RefundList struct {
	Refunds    []RefundSummary `json:"refunds"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// Repository persists refund requests.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, refund *models.Refund) error {
	return r.db.WithContext(ctx).Create(refund).Error
}

// MarkAccepted flips accepted and reports whether the refund exists.
func (r *Repository) MarkAccepted(ctx context.Context, refundID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Refund{}).
		Where("id = ?", refundID).
		Update("accepted", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// FindFinalizedOrders returns the listed orders that have been paid.
func (r *Repository) FindFinalizedOrders(ctx context.Context, orderIDs []uuid.UUID) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Select("id", "ref_code", "user_id").
		Where("id IN ? AND ordered = ?", orderIDs, true).
		Find(&rows).Error
	return rows, err
}

// List returns newest-first refunds using cursor pagination.
func (r *Repository) List(ctx context.Context, params pagination.Params, filters ListFilters) (*RefundList, error) {
	q := r.db.WithContext(ctx).Model(&models.Refund{}).Preload("Order")
	if filters.Accepted != nil {
		q = q.Where("accepted = ?", *filters.Accepted)
	}
	if filters.OrderID != nil {
		q = q.Where("order_id = ?", *filters.OrderID)
	}
	q, err := params.Apply(q)
	if err != nil {
		return nil, err
	}

	var rows []models.Refund
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	rows, next := pagination.Trim(params, rows, func(r models.Refund) pagination.Cursor {
		return pagination.Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
	})
	list := &RefundList{Refunds: make([]RefundSummary, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		summary := RefundSummary{
			ID:        row.ID,
			OrderID:   row.OrderID,
			Reason:    row.Reason,
			Email:     row.Email,
			Accepted:  row.Accepted,
			CreatedAt: row.CreatedAt,
		}
		if row.Order != nil {
			summary.RefCode = row.Order.RefCode
		}
		list.Refunds = append(list.Refunds, summary)
	}
	return list, nil
}
