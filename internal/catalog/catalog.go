// Package catalog serves the read-only menu and staff reference data.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"pos-terminal/internal/models"
)

var (
	ErrItemNotFound  = errors.New("catalog item not found")
	ErrStaffNotFound = errors.New("staff member not found")
)

// Provider looks up menu items
type Provider interface {
	GetItem(id string) (models.CatalogItem, error)
}

// Directory looks up staff for attaching a server name to orders
type Directory interface {
	GetStaff(id string) (models.Staff, error)
}

type catalogFile struct {
	Items []models.CatalogItem `yaml:"items"`
}

type staffFile struct {
	Staff []models.Staff `yaml:"staff"`
}

// Static is an in-memory Provider
type Static struct {
	items map[string]models.CatalogItem
}

// NewStatic validates and indexes items
func NewStatic(items []models.CatalogItem) (*Static, error) {
	s := &Static{items: make(map[string]models.CatalogItem, len(items))}
	for _, item := range items {
		if err := validateItem(item); err != nil {
			return nil, err
		}
		if _, dup := s.items[item.ID]; dup {
			return nil, fmt.Errorf("duplicate catalog item %q", item.ID)
		}
		s.items[item.ID] = item
	}
	return s, nil
}

// LoadFile reads a YAML catalog
func LoadFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return NewStatic(f.Items)
}

func (s *Static) GetItem(id string) (models.CatalogItem, error) {
	item, ok := s.items[id]
	if !ok {
		return models.CatalogItem{}, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	return item, nil
}

// Items returns every item sorted by category then name
func (s *Static) Items() []models.CatalogItem {
	out := make([]models.CatalogItem, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func validateItem(item models.CatalogItem) error {
	if item.ID == "" || item.Name == "" {
		return fmt.Errorf("catalog item needs an id and a name: %+v", item)
	}
	switch item.Mode {
	case models.PricingFixed, models.PricingWeighted:
		if !item.UnitPrice.IsPositive() {
			return fmt.Errorf("catalog item %q: unit_price must be positive", item.ID)
		}
	case models.PricingVariant:
		if len(item.Variants) == 0 {
			return fmt.Errorf("catalog item %q: VARIANT items need variants", item.ID)
		}
		for _, v := range item.Variants {
			if v.Name == "" || !v.Price.IsPositive() {
				return fmt.Errorf("catalog item %q: variant needs a name and a positive price", item.ID)
			}
		}
	default:
		return fmt.Errorf("catalog item %q: unknown pricing_mode %q", item.ID, item.Mode)
	}
	return nil
}

// StaffList is an in-memory Directory
type StaffList struct {
	staff map[string]models.Staff
}

func NewStaffList(staff []models.Staff) *StaffList {
	l := &StaffList{staff: make(map[string]models.Staff, len(staff))}
	for _, s := range staff {
		l.staff[s.ID] = s
	}
	return l
}

// LoadStaffFile reads a YAML staff directory
func LoadStaffFile(path string) (*StaffList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read staff directory: %w", err)
	}

	var f staffFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse staff directory: %w", err)
	}
	return NewStaffList(f.Staff), nil
}

func (l *StaffList) GetStaff(id string) (models.Staff, error) {
	s, ok := l.staff[id]
	if !ok {
		return models.Staff{}, fmt.Errorf("%w: %s", ErrStaffNotFound, id)
	}
	return s, nil
}
