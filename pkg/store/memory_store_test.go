package store

import (
	"testing"
	"time"

	"quicklist/pkg/domain"
)

func activeListing(id, title string, price float64) domain.Listing {
	return domain.Listing{
		ID:        id,
		SellerID:  "seller-1",
		Title:     title,
		Price:     price,
		Condition: domain.ConditionGood,
		Location:  "Berlin",
		Status:    domain.ListingActive,
		CreatedAt: time.Now().UTC(),
	}
}

func TestMemoryStoreUserEmailConflict(t *testing.T) {
	m := NewMemoryStore()
	if err := m.CreateUser(domain.User{ID: "u1", Email: "a@example.com"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := m.CreateUser(domain.User{ID: "u2", Email: "A@Example.com"}); err != ErrDuplicateEmail {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
	u, ok, err := m.GetUserByEmail("A@EXAMPLE.COM")
	if err != nil || !ok || u.ID != "u1" {
		t.Fatalf("case-insensitive email lookup failed: %+v ok=%v err=%v", u, ok, err)
	}
}

func TestMemoryStoreCategoriesSeeded(t *testing.T) {
	m := NewMemoryStore()
	cats, err := m.ListCategories()
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	if len(cats) != len(CategoryNames) {
		t.Fatalf("expected %d categories, got %d", len(CategoryNames), len(cats))
	}
	c, ok, err := m.GetCategoryByName("electronics")
	if err != nil || !ok || c.Name != "Electronics" {
		t.Fatalf("lookup failed: %+v ok=%v err=%v", c, ok, err)
	}
}

func TestMemoryStoreSearchFilters(t *testing.T) {
	m := NewMemoryStore()
	first := activeListing("l1", "Vintage camera", 80)
	second := activeListing("l2", "Road bike", 250)
	inactive := activeListing("l3", "Old camera", 10)
	inactive.Status = domain.ListingInactive
	for _, l := range []domain.Listing{first, second, inactive} {
		if err := m.CreateListing(l); err != nil {
			t.Fatalf("create listing: %v", err)
		}
	}

	all, err := m.SearchListings(SearchQuery{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected inactive listings filtered, got %d results", len(all))
	}
	if all[0].ID != "l2" {
		t.Fatalf("expected newest-first ordering, got %s first", all[0].ID)
	}

	byText, err := m.SearchListings(SearchQuery{Text: "CAMERA"})
	if err != nil || len(byText) != 1 || byText[0].ID != "l1" {
		t.Fatalf("text filter failed: %v %v", byText, err)
	}

	minPrice := 100.0
	byPrice, err := m.SearchListings(SearchQuery{MinPrice: &minPrice})
	if err != nil || len(byPrice) != 1 || byPrice[0].ID != "l2" {
		t.Fatalf("price filter failed: %v %v", byPrice, err)
	}
}

func TestMemoryStoreViewIncrementNeverDecreases(t *testing.T) {
	m := NewMemoryStore()
	if err := m.CreateListing(activeListing("l1", "Desk", 40)); err != nil {
		t.Fatalf("create listing: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := m.IncrementListingViews("l1"); err != nil {
			t.Fatalf("increment views: %v", err)
		}
	}
	l, ok, err := m.GetListing("l1")
	if err != nil || !ok {
		t.Fatalf("get listing: ok=%v err=%v", ok, err)
	}
	if l.Views != 3 {
		t.Fatalf("expected 3 views, got %d", l.Views)
	}
}

func TestMemoryStoreMessagesKeepOrder(t *testing.T) {
	m := NewMemoryStore()
	if err := m.CreateConversation(domain.Conversation{ID: "c1", ListingID: "l1"}); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	sender := "buyer-1"
	msgs := []domain.Message{
		{ID: "m1", ConversationID: "c1", SenderID: &sender, Content: "hi"},
		{ID: "m2", ConversationID: "c1", SenderID: nil, Content: "hello!", AIGenerated: true},
	}
	for _, msg := range msgs {
		if err := m.AppendMessage(msg); err != nil {
			t.Fatalf("append message: %v", err)
		}
	}
	got, err := m.ListMessages("c1")
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(got) != 2 || got[0].ID != "m1" || got[1].ID != "m2" {
		t.Fatalf("unexpected message order: %+v", got)
	}
}
