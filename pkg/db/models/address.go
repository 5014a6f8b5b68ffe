package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Address is a user-owned postal address. Country holds one or more ISO codes.
type Address struct {
	ID               uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID           uuid.UUID         `gorm:"column:user_id;type:uuid;not null"`
	StreetAddress    string            `gorm:"column:street_address;not null"`
	ApartmentAddress string            `gorm:"column:apartment_address;not null;default:''"`
	Country          pq.StringArray    `gorm:"column:country;type:text[];not null"`
	Zip              string            `gorm:"column:zip;not null"`
	AddressType      enums.AddressType `gorm:"column:address_type;not null"`
	IsDefault        bool              `gorm:"column:is_default;not null;default:false"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (a *Address) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
