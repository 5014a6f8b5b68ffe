// Package dbtest opens throwaway sqlite databases carrying the storefront
// schema so repository and service tests run without Postgres.
package dbtest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

var dbSeq atomic.Int64

// Open returns an isolated in-memory database with the sqlite schema applied.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range db.SQLiteSchema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

// SeedItem inserts a shirt with the given slug and prices. An empty discount
// leaves discount_price NULL.
func SeedItem(t *testing.T, conn *gorm.DB, slug, price, discount string) models.Item {
	t.Helper()

	item := models.Item{
		Title:    strings.ReplaceAll(slug, "-", " "),
		Price:    decimal.RequireFromString(price),
		Category: enums.ItemCategoryShirt,
		Label:    enums.ItemLabelPrimary,
		Slug:     slug,
	}
	if discount != "" {
		d := decimal.RequireFromString(discount)
		item.DiscountPrice = &d
	}
	require.NoError(t, conn.Create(&item).Error)
	return item
}

// SeedCoupon inserts a coupon with the given code and amount.
func SeedCoupon(t *testing.T, conn *gorm.DB, code, amount string) models.Coupon {
	t.Helper()

	coupon := models.Coupon{Code: code, Amount: decimal.RequireFromString(amount)}
	require.NoError(t, conn.Create(&coupon).Error)
	return coupon
}
