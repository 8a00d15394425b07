package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"salonbook/internal/civil"
	"salonbook/internal/model"
)

// SalonConfig is one tenant in salons.yaml.
type SalonConfig struct {
	Code                      string                 `yaml:"code"`
	Name                      string                 `yaml:"name"`
	Timezone                  string                 `yaml:"timezone"`
	MaxConcurrentReservations int                    `yaml:"max_concurrent_reservations"`
	IsActive                  bool                   `yaml:"is_active"`
	BusinessHours             map[string]HoursConfig `yaml:"business_hours"`
	ClosedDays                []int                  `yaml:"closed_days"` // 0=Sun
	TemporaryClosedDays       []string               `yaml:"temporary_closed_days"`
	SpecialBusinessHours      map[string]HoursConfig `yaml:"special_business_hours"`
	Staff                     []StaffConfig          `yaml:"staff"`
	Menus                     []MenuConfig           `yaml:"menus"`
}

// HoursConfig is a business-hours entry. Closed marks a day the salon does not operate.
type HoursConfig struct {
	Open   string `yaml:"open"`
	Close  string `yaml:"close"`
	Closed bool   `yaml:"closed,omitempty"`
}

type StaffConfig struct {
	Name         string `yaml:"name"`
	WorkingHours string `yaml:"working_hours"` // "10:00-18:00"
	IsActive     bool   `yaml:"is_active"`
}

type MenuConfig struct {
	Name     string `yaml:"name"`
	Price    int64  `yaml:"price"`
	Duration int    `yaml:"duration"` // minutes
	IsActive bool   `yaml:"is_active"`
}

// CatalogConfig is the root of salons.yaml.
type CatalogConfig struct {
	Salons []SalonConfig `yaml:"salons"`
}

// LoadCatalog loads and validates the salon catalog.
func LoadCatalog(path string) (*CatalogConfig, error) {
	if path == "" {
		path = "configs/salons.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read salons config: %w", err)
	}
	return parseCatalog(data)
}

func parseCatalog(data []byte) (*CatalogConfig, error) {
	var cfg CatalogConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse salons config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate salons config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the catalog for errors.
func (c *CatalogConfig) Validate() error {
	if len(c.Salons) == 0 {
		return fmt.Errorf("no salons defined")
	}

	codes := make(map[string]bool)
	for i, s := range c.Salons {
		if s.Code == "" {
			return fmt.Errorf("salon[%d]: code is required", i)
		}
		if codes[s.Code] {
			return fmt.Errorf("salon[%d]: duplicate code '%s'", i, s.Code)
		}
		codes[s.Code] = true

		if s.Name == "" {
			return fmt.Errorf("salon[%d]: name is required", i)
		}
		if s.Timezone != "" {
			if _, err := time.LoadLocation(s.Timezone); err != nil {
				return fmt.Errorf("salon[%d]: unknown timezone '%s'", i, s.Timezone)
			}
		}
		if s.MaxConcurrentReservations < 0 {
			return fmt.Errorf("salon[%d]: max_concurrent_reservations cannot be negative", i)
		}
		for key, h := range s.BusinessHours {
			if err := validateHours(h, fmt.Sprintf("salon[%d].business_hours.%s", i, key)); err != nil {
				return err
			}
		}
		for key, h := range s.SpecialBusinessHours {
			if _, err := civil.ParseDate(key); err != nil {
				return fmt.Errorf("salon[%d].special_business_hours: invalid date '%s', expected YYYY-MM-DD", i, key)
			}
			if err := validateHours(h, fmt.Sprintf("salon[%d].special_business_hours.%s", i, key)); err != nil {
				return err
			}
		}
		for j, d := range s.ClosedDays {
			if d < 0 || d > 6 {
				return fmt.Errorf("salon[%d].closed_days[%d]: invalid day %d, must be 0-6 (0=Sun)", i, j, d)
			}
		}
		for j, d := range s.TemporaryClosedDays {
			if _, err := civil.ParseDate(d); err != nil {
				return fmt.Errorf("salon[%d].temporary_closed_days[%d]: invalid date '%s', expected YYYY-MM-DD", i, j, d)
			}
		}

		staffNames := make(map[string]bool)
		for j, st := range s.Staff {
			if st.Name == "" {
				return fmt.Errorf("salon[%d].staff[%d]: name is required", i, j)
			}
			if staffNames[st.Name] {
				return fmt.Errorf("salon[%d].staff[%d]: duplicate name '%s'", i, j, st.Name)
			}
			staffNames[st.Name] = true
			if st.WorkingHours != "" {
				if _, _, ok := model.ParseWorkingHours(st.WorkingHours); !ok {
					return fmt.Errorf("salon[%d].staff[%d]: invalid working_hours '%s', expected HH:MM-HH:MM", i, j, st.WorkingHours)
				}
			}
		}

		menuNames := make(map[string]bool)
		for j, m := range s.Menus {
			if m.Name == "" {
				return fmt.Errorf("salon[%d].menus[%d]: name is required", i, j)
			}
			if menuNames[m.Name] {
				return fmt.Errorf("salon[%d].menus[%d]: duplicate name '%s'", i, j, m.Name)
			}
			menuNames[m.Name] = true
			if m.Duration <= 0 {
				return fmt.Errorf("salon[%d].menus[%d]: duration must be positive", i, j)
			}
			if m.Price < 0 {
				return fmt.Errorf("salon[%d].menus[%d]: price cannot be negative", i, j)
			}
		}
	}
	return nil
}

func validateHours(h HoursConfig, prefix string) error {
	if h.Closed {
		return nil
	}
	open, err := civil.ParseLocalTime(h.Open)
	if err != nil {
		return fmt.Errorf("%s.open: invalid format '%s', expected HH:MM", prefix, h.Open)
	}
	close, err := civil.ParseLocalTime(h.Close)
	if err != nil {
		return fmt.Errorf("%s.close: invalid format '%s', expected HH:MM", prefix, h.Close)
	}
	if !open.Before(close) {
		return fmt.Errorf("%s: close must be after open", prefix)
	}
	return nil
}

// Salon returns the salon with the given code.
func (c *CatalogConfig) Salon(code string) *SalonConfig {
	for i := range c.Salons {
		if c.Salons[i].Code == code {
			return &c.Salons[i]
		}
	}
	return nil
}

// CalendarJSON renders the salon's calendar settings the way tenants store them.
func (s *SalonConfig) CalendarJSON() (hours, closed, temporary, special string, err error) {
	return model.EncodeCalendar(toDayHours(s.BusinessHours), s.ClosedDays, s.TemporaryClosedDays, toDayHours(s.SpecialBusinessHours))
}

func toDayHours(in map[string]HoursConfig) map[string]model.DayHours {
	out := make(map[string]model.DayHours, len(in))
	for k, h := range in {
		dh := model.DayHours{Open: h.Open, Close: h.Close}
		if h.Closed {
			open := false
			dh.IsOpen = &open
		}
		out[k] = dh
	}
	return out
}

// String returns a summary of the catalog.
func (c *CatalogConfig) String() string {
	staff, menus := 0, 0
	for _, s := range c.Salons {
		staff += len(s.Staff)
		menus += len(s.Menus)
	}
	return fmt.Sprintf("CatalogConfig: %d salons, %d staff, %d menus", len(c.Salons), staff, menus)
}
