package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"salonbook/internal/model"
)

// FindOrCreateCustomer matches an existing customer of the tenant by Telegram
// id, then email, then phone, and inserts c when nothing matches. c.ID is set
// on return; the stored name wins over c.Name for existing customers.
func (db *DB) FindOrCreateCustomer(ctx context.Context, c *model.Customer) error {
	c.Email = strings.TrimSpace(strings.ToLower(c.Email))
	c.Phone = strings.TrimSpace(c.Phone)

	lookups := []struct {
		column string
		value  any
		ok     bool
	}{
		{"telegram_id", c.TelegramID, c.TelegramID != 0},
		{"email", c.Email, c.Email != ""},
		{"phone", c.Phone, c.Phone != ""},
	}
	for _, l := range lookups {
		if !l.ok {
			continue
		}
		err := db.QueryRowContext(ctx,
			"SELECT id, name, created_at FROM customers WHERE tenant_id = ? AND "+l.column+" = ? ORDER BY id LIMIT 1",
			c.TenantID, l.value,
		).Scan(&c.ID, &c.Name, &c.CreatedAt)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("find customer by %s: %w", l.column, err)
		}
	}

	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: customer name is required", model.ErrInvalidRequest)
	}
	c.CreatedAt = time.Now()
	res, err := db.ExecContext(ctx, `
		INSERT INTO customers (tenant_id, name, email, phone, telegram_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.TenantID, c.Name, c.Email, c.Phone, c.TelegramID, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert customer: %w", err)
	}
	c.ID, err = res.LastInsertId()
	return err
}
