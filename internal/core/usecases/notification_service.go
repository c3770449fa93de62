package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/nearyou/nearsync/internal/core/domain"
	"github.com/nearyou/nearsync/internal/core/ports"
	"github.com/nearyou/nearsync/internal/pkg/metrics"
)

// ErrLoadInFlight is returned by LoadMore while a previous page fetch for the
// same store is still outstanding.
var ErrLoadInFlight = errors.New("promotion page load already in flight")

// categoryRules maps shop-name keywords to notification categories.
// Order matters: the first matching rule wins.
var categoryRules = []struct {
	keywords []string
	category string
}{
	{[]string{"ristorante", "trattoria", "pizzeria"}, "ristorante"},
	{[]string{"bar", "caffè", "cafe"}, "bar"},
	{[]string{"super", "market"}, "supermercato"},
	{[]string{"tech", "elettro"}, "elettronica"},
	{[]string{"moda", "abbiglia"}, "abbigliamento"},
}

// InferCategory derives a notification category from a shop name by
// case-insensitive substring matching. Names matching no rule fall back to
// "shopping".
func InferCategory(shopName string) string {
	name := strings.ToLower(shopName)
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(name, kw) {
				return rule.category
			}
		}
	}
	return "shopping"
}

// NotificationService owns the deduplicated, most-recent-first notification
// list and the pagination cursor over the historical promotions feed.
type NotificationService struct {
	promos   ports.PromotionProvider
	events   ports.EventPublisher // optional
	pageSize int

	mu      sync.Mutex
	items   []domain.Notification
	seen    map[string]struct{} // message text
	cursor  int
	loading bool
}

// NewNotificationService creates an empty store. events may be nil.
func NewNotificationService(promos ports.PromotionProvider, events ports.EventPublisher, pageSize int) *NotificationService {
	return &NotificationService{
		promos:   promos,
		events:   events,
		pageSize: pageSize,
		seen:     make(map[string]struct{}),
	}
}

// Add prepends a notification unless one with identical message text is
// already stored. Returns whether the notification was accepted.
func (s *NotificationService) Add(ctx context.Context, n domain.Notification) bool {
	s.mu.Lock()
	if _, dup := s.seen[n.Message]; dup {
		s.mu.Unlock()
		metrics.Notifications.WithLabelValues("duplicate").Inc()
		return false
	}
	s.seen[n.Message] = struct{}{}
	s.items = append([]domain.Notification{n}, s.items...)
	s.mu.Unlock()

	metrics.Notifications.WithLabelValues("added").Inc()
	if s.events != nil {
		_ = s.events.PublishNotification(ctx, n)
	}
	return true
}

// Has reports whether a notification with the exact message text is stored.
func (s *NotificationService) Has(message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[message]
	return ok
}

// LoadMore fetches the next page of historical promotions and appends the
// mapped notifications. The cursor advances only on a successful, non-empty
// fetch. hasMore is false once a short page comes back. At most one load may
// be outstanding; concurrent calls get ErrLoadInFlight without touching state.
func (s *NotificationService) LoadMore(ctx context.Context) (added int, hasMore bool, err error) {
	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return 0, true, ErrLoadInFlight
	}
	s.loading = true
	offset := s.cursor * s.pageSize
	s.mu.Unlock()

	rows, err := s.promos.Promotions(ctx, offset, s.pageSize)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false

	if err != nil {
		return 0, true, fmt.Errorf("fetch promotions page %d: %w", s.cursor, err)
	}
	if len(rows) == 0 {
		return 0, false, nil
	}

	for _, row := range rows {
		if _, dup := s.seen[row.Message]; dup {
			metrics.Notifications.WithLabelValues("duplicate").Inc()
			continue
		}
		s.seen[row.Message] = struct{}{}
		s.items = append(s.items, domain.Notification{
			ID:        fmt.Sprintf("promo-%d", row.EventID),
			Message:   row.Message,
			Timestamp: row.Timestamp,
			ShopName:  row.ShopName,
			Category:  InferCategory(row.ShopName),
		})
		added++
		metrics.Notifications.WithLabelValues("added").Inc()
	}

	s.cursor++
	metrics.PromotionPages.Inc()
	return added, len(rows) == s.pageSize, nil
}

// Recent returns the n most recent notifications.
func (s *NotificationService) Recent(n int) []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 || n > len(s.items) {
		n = len(s.items)
	}
	out := make([]domain.Notification, n)
	copy(out, s.items[:n])
	return out
}

// Len returns the number of stored notifications.
func (s *NotificationService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Cursor returns the current page index.
func (s *NotificationService) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}
