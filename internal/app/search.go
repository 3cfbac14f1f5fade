package app

import (
	"fmt"

	"quicklist/pkg/domain"
	"quicklist/pkg/store"
)

// SearchListings is the thin filtered query surface over stored listings.
func (a *App) SearchListings(q store.SearchQuery) ([]domain.Listing, error) {
	listings, err := a.store.SearchListings(q)
	if err != nil {
		return nil, fmt.Errorf("search listings: %w", err)
	}
	return listings, nil
}

// GetListing returns a listing and bumps its view counter. The returned
// snapshot is the pre-increment read; concurrent readers may race on the
// counter (last-write-wins); the count never decreases.
func (a *App) GetListing(id string) (domain.Listing, error) {
	listing, ok, err := a.store.GetListing(id)
	if err != nil {
		return domain.Listing{}, fmt.Errorf("load listing: %w", err)
	}
	if !ok {
		return domain.Listing{}, notFound("listing not found")
	}
	if err := a.store.IncrementListingViews(id); err != nil {
		return domain.Listing{}, fmt.Errorf("increment views: %w", err)
	}
	return listing, nil
}
