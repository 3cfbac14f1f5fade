package app

import (
	"fmt"
	"strings"

	"quicklist/pkg/domain"
)

// ResolveCategory maps a free-text category label to a stored category ID via
// case-insensitive exact match. Unmatched labels yield nil, never an error:
// the listing persists uncategorized rather than failing the pipeline.
func (a *App) ResolveCategory(label string) (*string, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, nil
	}
	category, ok, err := a.store.GetCategoryByName(label)
	if err != nil {
		return nil, fmt.Errorf("resolve category: %w", err)
	}
	if !ok {
		return nil, nil
	}
	id := category.ID
	return &id, nil
}

// Categories lists the stored taxonomy.
func (a *App) Categories() ([]domain.Category, error) {
	return a.store.ListCategories()
}
