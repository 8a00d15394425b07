package availability

import (
	"fmt"

	"salonbook/internal/model"
)

// Totals is the aggregate of the services chosen for one reservation.
type Totals struct {
	TotalPrice    int64                   `json:"total_price"`
	TotalDuration int                     `json:"total_duration"`
	Items         []model.ReservationItem `json:"items"`
	// PrimaryMenuID is the first requested menu.
	PrimaryMenuID int64 `json:"primary_menu_id"`
}

// ComputeTotals sums price and duration over menuIDs, resolved against the
// tenant's catalog. A repeated id is charged once per occurrence.
func ComputeTotals(tenantID int64, menuIDs []int64, catalog []model.Menu) (Totals, error) {
	if len(menuIDs) == 0 {
		return Totals{}, fmt.Errorf("%w: at least one menu is required", ErrInvalidRequest)
	}

	byID := make(map[int64]model.Menu, len(catalog))
	for _, m := range catalog {
		if m.TenantID == tenantID && m.IsActive {
			byID[m.ID] = m
		}
	}

	totals := Totals{PrimaryMenuID: menuIDs[0], Items: make([]model.ReservationItem, 0, len(menuIDs))}
	for _, id := range menuIDs {
		m, ok := byID[id]
		if !ok {
			return Totals{}, fmt.Errorf("%w: menu %d", ErrNotFound, id)
		}
		if m.Duration <= 0 {
			return Totals{}, fmt.Errorf("%w: menu %d has no duration", ErrInvalidRequest, id)
		}
		totals.TotalPrice += m.Price
		totals.TotalDuration += m.Duration
		totals.Items = append(totals.Items, model.ReservationItem{
			MenuID:   m.ID,
			Name:     m.Name,
			Price:    m.Price,
			Duration: m.Duration,
		})
	}
	return totals, nil
}
