package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/NasaVasa/pricewatch/internal/domain"
	"github.com/shopspring/decimal"
)

var errStoreDown = errors.New("store down")

type memStore struct {
	mu     sync.Mutex
	nextID uint
	alerts map[uint]domain.Alert
	states map[int64]domain.ConversationState

	failSaveState bool
	failComplete  bool
	failMark      map[uint]bool
	markCalls     []uint
}

func newMemStore() *memStore {
	return &memStore{
		alerts:   make(map[uint]domain.Alert),
		states:   make(map[int64]domain.ConversationState),
		failMark: make(map[uint]bool),
	}
}

func (s *memStore) GetActiveAlerts(context.Context) ([]domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var active []domain.Alert
	for _, alert := range s.alerts {
		if alert.Active {
			active = append(active, alert)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })
	return active, nil
}

func (s *memStore) SaveAlert(_ context.Context, alert *domain.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertLocked(alert)
	return nil
}

func (s *memStore) insertLocked(alert *domain.Alert) {
	s.nextID++
	alert.ID = s.nextID
	s.alerts[alert.ID] = *alert
}

func (s *memStore) MarkTriggered(_ context.Context, alertID uint, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markCalls = append(s.markCalls, alertID)
	if s.failMark[alertID] {
		return fmt.Errorf("%w: %w", domain.ErrPersistence, errStoreDown)
	}
	alert, ok := s.alerts[alertID]
	if !ok || !alert.Active {
		return domain.ErrNotFound
	}
	alert.Active = false
	alert.TriggeredAt = &at
	s.alerts[alertID] = alert
	return nil
}

func (s *memStore) GetConversationState(_ context.Context, sessionID int64) (*domain.ConversationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[sessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &state, nil
}

func (s *memStore) SaveConversationState(_ context.Context, state *domain.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSaveState {
		return errStoreDown
	}
	s.states[state.SessionID] = *state
	return nil
}

func (s *memStore) ClearConversationState(_ context.Context, sessionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, sessionID)
	return nil
}

func (s *memStore) CompleteConversation(_ context.Context, sessionID int64, alert *domain.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failComplete {
		return errStoreDown
	}
	s.insertLocked(alert)
	delete(s.states, sessionID)
	return nil
}

func (s *memStore) alert(id uint) domain.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alerts[id]
}

type fakePrices struct {
	mu        sync.Mutex
	prices    map[domain.PriceKey]string
	failures  map[domain.PriceKey]int
	permanent map[domain.PriceKey]error
	hang      map[domain.PriceKey]bool
	calls     map[domain.PriceKey]int
	gate      chan struct{}
}

func newFakePrices() *fakePrices {
	return &fakePrices{
		prices:    make(map[domain.PriceKey]string),
		failures:  make(map[domain.PriceKey]int),
		permanent: make(map[domain.PriceKey]error),
		hang:      make(map[domain.PriceKey]bool),
		calls:     make(map[domain.PriceKey]int),
	}
}

func (p *fakePrices) set(symbol, source, price string) {
	p.prices[domain.PriceKey{Symbol: symbol, Source: source}] = price
}

func (p *fakePrices) failTimes(symbol, source string, n int) {
	p.failures[domain.PriceKey{Symbol: symbol, Source: source}] = n
}

func (p *fakePrices) GetPrice(ctx context.Context, symbol string) (domain.PriceSample, error) {
	return p.quote(ctx, domain.PriceKey{Symbol: symbol})
}

func (p *fakePrices) GetPriceFromSource(ctx context.Context, symbol, source string) (domain.PriceSample, error) {
	return p.quote(ctx, domain.PriceKey{Symbol: symbol, Source: source})
}

func (p *fakePrices) quote(ctx context.Context, key domain.PriceKey) (domain.PriceSample, error) {
	p.mu.Lock()
	p.calls[key]++
	hang, gate := p.hang[key], p.gate
	p.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if hang {
		<-ctx.Done()
		return domain.PriceSample{}, ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.permanent[key]; err != nil {
		return domain.PriceSample{}, err
	}
	if p.failures[key] > 0 {
		p.failures[key]--
		return domain.PriceSample{}, domain.ErrSourceUnavailable
	}
	raw, ok := p.prices[key]
	if !ok {
		return domain.PriceSample{}, domain.ErrSourceUnavailable
	}
	source := key.Source
	if source == "" {
		source = "primary"
	}
	return domain.PriceSample{Symbol: key.Symbol, Source: source, Price: mustDecimal(raw), ObservedAt: time.Now()}, nil
}

func (p *fakePrices) callCount(symbol, source string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[domain.PriceKey{Symbol: symbol, Source: source}]
}

type sentMessage struct {
	owner   int64
	message string
}

type fakeNotifier struct {
	mu          sync.Mutex
	sent        []sentMessage
	failOwners  map[int64]bool
	unreachable bool
	onSend      func()
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{failOwners: make(map[int64]bool)}
}

func (n *fakeNotifier) SendAlert(_ context.Context, owner int64, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failOwners[owner] {
		return domain.ErrSourceUnavailable
	}
	n.sent = append(n.sent, sentMessage{owner: owner, message: message})
	if n.onSend != nil {
		n.onSend()
	}
	return nil
}

func (n *fakeNotifier) VerifyReachable(context.Context) error {
	if n.unreachable {
		return domain.ErrSourceUnavailable
	}
	return nil
}

func (n *fakeNotifier) messages() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentMessage(nil), n.sent...)
}

func mustDecimal(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}
