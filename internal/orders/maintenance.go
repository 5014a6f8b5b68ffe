package orders

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// MaintenanceRepository holds bulk cleanup queries run by the cron worker.
type MaintenanceRepository struct {
	db *gorm.DB
}

func NewMaintenanceRepository(db *gorm.DB) *MaintenanceRepository {
	return &MaintenanceRepository{db: db}
}

// DeleteEmptyCartsBefore removes unordered orders started before cutoff that
// no longer carry any line. The next cart mutation recreates the active order.
func (r *MaintenanceRepository) DeleteEmptyCartsBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	conn := r.db
	if tx != nil {
		conn = tx
	}
	res := conn.WithContext(ctx).
		Where("ordered = ? AND start_date < ?", false, cutoff).
		Where("NOT EXISTS (SELECT 1 FROM order_items oi WHERE oi.order_id = orders.id)").
		Delete(&models.Order{})
	return res.RowsAffected, res.Error
}
