package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"salonbook/internal/model"
)

// FindOrCreateCustomer matches by Telegram id, then email, then phone. A
// concurrent insert for the same Telegram id is resolved by reading the winner.
func (s *Store) FindOrCreateCustomer(ctx context.Context, c *model.Customer) error {
	c.Email = strings.TrimSpace(strings.ToLower(c.Email))
	c.Phone = strings.TrimSpace(c.Phone)

	found, err := s.findCustomer(ctx, c)
	if err != nil || found {
		return err
	}

	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: customer name is required", model.ErrInvalidRequest)
	}
	err = s.pool.QueryRow(ctx, `
		INSERT INTO customers (tenant_id, name, email, phone, telegram_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		c.TenantID, c.Name, c.Email, c.Phone, c.TelegramID,
	).Scan(&c.ID, &c.CreatedAt)
	if isUniqueViolation(err) {
		if found, ferr := s.findCustomer(ctx, c); ferr == nil && found {
			return nil
		}
	}
	if err != nil {
		return fmt.Errorf("insert customer: %w", err)
	}
	return nil
}

func (s *Store) findCustomer(ctx context.Context, c *model.Customer) (bool, error) {
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
		err := s.pool.QueryRow(ctx,
			"SELECT id, name, created_at FROM customers WHERE tenant_id = $1 AND "+l.column+" = $2 ORDER BY id LIMIT 1",
			c.TenantID, l.value,
		).Scan(&c.ID, &c.Name, &c.CreatedAt)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return false, fmt.Errorf("find customer by %s: %w", l.column, err)
		}
	}
	return false, nil
}
