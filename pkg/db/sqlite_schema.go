package db

import (
	"context"
	"fmt"
)

// SQLiteSchema mirrors pkg/migrate/migrations using sqlite types. Partial unique
// indexes keep the active-order and open-line guarantees.
var SQLiteSchema = []string{
	`CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		price TEXT NOT NULL,
		discount_price TEXT,
		category TEXT NOT NULL,
		label TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS addresses (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		street_address TEXT NOT NULL,
		apartment_address TEXT NOT NULL DEFAULT '',
		country TEXT NOT NULL,
		zip TEXT NOT NULL,
		address_type TEXT NOT NULL,
		is_default BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS coupons (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL,
		amount TEXT NOT NULL,
		created_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		charge_id TEXT NOT NULL,
		processor TEXT NOT NULL,
		user_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		timestamp DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		ref_code TEXT,
		ordered BOOLEAN NOT NULL DEFAULT 0,
		start_date DATETIME NOT NULL,
		ordered_date DATETIME NOT NULL,
		billing_address_id TEXT,
		shipping_address_id TEXT,
		payment_id TEXT,
		coupon_id TEXT,
		payment_option TEXT,
		being_delivered BOOLEAN NOT NULL DEFAULT 0,
		received BOOLEAN NOT NULL DEFAULT 0,
		refund_requested BOOLEAN NOT NULL DEFAULT 0,
		refund_granted BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_orders_active_user ON orders (user_id) WHERE ordered = 0`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_orders_ref_code ON orders (ref_code) WHERE ref_code IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		order_id TEXT NOT NULL,
		item_id TEXT NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 1,
		ordered BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_order_items_open_line ON order_items (user_id, item_id) WHERE ordered = 0`,
	`CREATE TABLE IF NOT EXISTS refunds (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		reason TEXT NOT NULL,
		email TEXT NOT NULL,
		accepted BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload BLOB NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
}

// ApplySQLiteSchema creates the storefront tables on a sqlite connection.
// Postgres deployments go through the goose migrations instead.
func (c *Client) ApplySQLiteSchema(ctx context.Context) error {
	for _, stmt := range SQLiteSchema {
		if err := c.conn.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("applying sqlite schema: %w", err)
		}
	}
	return nil
}
