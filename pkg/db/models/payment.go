package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Payment records one successful processor charge.
type Payment struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ChargeID  string                 `gorm:"column:charge_id;not null"`
	Processor enums.PaymentProcessor `gorm:"column:processor;not null"`
	UserID    uuid.UUID              `gorm:"column:user_id;type:uuid;not null"`
	Amount    decimal.Decimal        `gorm:"column:amount;type:numeric(12,2);not null"`
	Timestamp time.Time              `gorm:"column:timestamp;not null"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
