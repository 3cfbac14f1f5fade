package store

import (
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"quicklist/pkg/domain"
)

// MemoryStore keeps all records in-process. It backs tests and local runs
// without Postgres.
type MemoryStore struct {
	mu            sync.RWMutex
	users         map[string]domain.User
	emails        map[string]string // lower(email) -> user ID
	categories    []domain.Category
	listings      map[string]domain.Listing
	listingOrder  []string
	conversations map[string]domain.Conversation
	messages      map[string][]domain.Message
}

// NewMemoryStore initializes an empty store with the category taxonomy
// seeded.
func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{
		users:         make(map[string]domain.User),
		emails:        make(map[string]string),
		listings:      make(map[string]domain.Listing),
		conversations: make(map[string]domain.Conversation),
		messages:      make(map[string][]domain.Message),
	}
	for _, name := range CategoryNames {
		m.categories = append(m.categories, domain.Category{ID: uuid.NewString(), Name: name})
	}
	return m
}

func (m *MemoryStore) CreateUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(u.Email)
	if _, exists := m.emails[key]; exists {
		return ErrDuplicateEmail
	}
	m.users[u.ID] = u
	m.emails[key] = u.ID
	return nil
}

func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.emails[strings.ToLower(email)]
	if !ok {
		return domain.User{}, false, nil
	}
	u, exists := m.users[id]
	return u, exists, nil
}

func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) ListCategories() ([]domain.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Category, len(m.categories))
	copy(res, m.categories)
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res, nil
}

func (m *MemoryStore) GetCategoryByName(name string) (domain.Category, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := strings.ToLower(strings.TrimSpace(name))
	for _, c := range m.categories {
		if strings.ToLower(c.Name) == want {
			return c, true, nil
		}
	}
	return domain.Category{}, false, nil
}

func (m *MemoryStore) CreateListing(l domain.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.listings[l.ID]; !exists {
		m.listingOrder = append(m.listingOrder, l.ID)
	}
	m.listings[l.ID] = l
	return nil
}

func (m *MemoryStore) GetListing(id string) (domain.Listing, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.listings[id]
	return l, ok, nil
}

func (m *MemoryStore) IncrementListingViews(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return nil
	}
	l.Views++
	m.listings[id] = l
	return nil
}

func (m *MemoryStore) SearchListings(q SearchQuery) ([]domain.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Listing, 0)
	// Newest first: listingOrder is insertion order, so walk it backwards.
	for i := len(m.listingOrder) - 1; i >= 0; i-- {
		l, ok := m.listings[m.listingOrder[i]]
		if !ok || l.Status != domain.ListingActive {
			continue
		}
		if !matchesQuery(l, q) {
			continue
		}
		res = append(res, l)
	}
	return res, nil
}

func matchesQuery(l domain.Listing, q SearchQuery) bool {
	if text := strings.ToLower(strings.TrimSpace(q.Text)); text != "" {
		if !strings.Contains(strings.ToLower(l.Title), text) &&
			!strings.Contains(strings.ToLower(l.Description), text) {
			return false
		}
	}
	if q.CategoryID != "" {
		if l.CategoryID == nil || *l.CategoryID != q.CategoryID {
			return false
		}
	}
	if loc := strings.ToLower(strings.TrimSpace(q.Location)); loc != "" {
		if !strings.Contains(strings.ToLower(l.Location), loc) {
			return false
		}
	}
	if q.MinPrice != nil && l.Price < *q.MinPrice {
		return false
	}
	if q.MaxPrice != nil && l.Price > *q.MaxPrice {
		return false
	}
	return true
}

func (m *MemoryStore) CreateConversation(c domain.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations[c.ID] = c
	return nil
}

func (m *MemoryStore) GetConversation(id string) (domain.Conversation, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.conversations[id]
	return c, ok, nil
}

func (m *MemoryStore) AppendMessage(msg domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], msg)
	return nil
}

func (m *MemoryStore) ListMessages(conversationID string) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.messages[conversationID]
	res := make([]domain.Message, len(msgs))
	copy(res, msgs)
	return res, nil
}
