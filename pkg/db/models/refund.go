package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Refund is a buyer's request to reverse a finalized order.
type Refund struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;not null"`
	Order     *Order    `gorm:"foreignKey:OrderID"`
	Reason    string    `gorm:"column:reason;not null"`
	Email     string    `gorm:"column:email;not null"`
	Accepted  bool      `gorm:"column:accepted;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *Refund) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
