package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Item is a catalog product addressed by its slug.
type Item struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Title         string             `gorm:"column:title;not null"`
	Price         decimal.Decimal    `gorm:"column:price;type:numeric(12,2);not null"`
	DiscountPrice *decimal.Decimal   `gorm:"column:discount_price;type:numeric(12,2)"`
	Category      enums.ItemCategory `gorm:"column:category;not null"`
	Label         enums.ItemLabel    `gorm:"column:label;not null"`
	Slug          string             `gorm:"column:slug;not null;uniqueIndex"`
	Description   string             `gorm:"column:description;not null;default:''"`
	ImageURL      string             `gorm:"column:image_url;not null;default:''"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *Item) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
