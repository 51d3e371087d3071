package service

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kleoslabs/kleos/internal/domain"
)

// In-memory doubles for the ledger, cache, bus, audit log, and lock manager.
// The ledger fake gives Atomic real rollback semantics: the callback runs
// against a deep copy of the state that only replaces the live state on
// success.

type posKey struct {
	market      uint64
	participant common.Address
}

type acctKey struct {
	owner common.Address
	asset common.Address
}

type memState struct {
	protocol  *domain.Protocol
	markets   map[uint64]*domain.Market
	positions map[posKey]*domain.Position
	balances  map[acctKey]uint64
}

func newMemState() *memState {
	return &memState{
		markets:   make(map[uint64]*domain.Market),
		positions: make(map[posKey]*domain.Position),
		balances:  make(map[acctKey]uint64),
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	if s.protocol != nil {
		p := *s.protocol
		c.protocol = &p
	}
	for id, m := range s.markets {
		cp := *m
		c.markets[id] = &cp
	}
	for k, pos := range s.positions {
		cp := *pos
		c.positions[k] = &cp
	}
	for k, v := range s.balances {
		c.balances[k] = v
	}
	return c
}

type memLedger struct {
	mu sync.Mutex
	st *memState
}

func newMemLedger() *memLedger {
	return &memLedger{st: newMemState()}
}

func (l *memLedger) Atomic(_ context.Context, fn func(tx domain.LedgerTx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := l.st.clone()
	if err := fn(&memTx{st: snap}); err != nil {
		return err
	}
	l.st = snap
	return nil
}

func (l *memLedger) Protocol(context.Context) (*domain.Protocol, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.st.protocol == nil {
		return nil, domain.ErrNotFound
	}
	p := *l.st.protocol
	return &p, nil
}

func (l *memLedger) Market(_ context.Context, id uint64) (*domain.Market, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.st.markets[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (l *memLedger) Markets(_ context.Context, opts domain.ListOpts) ([]*domain.Market, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []*domain.Market
	for id := uint64(0); len(out) < len(l.st.markets); id++ {
		if m, ok := l.st.markets[id]; ok {
			cp := *m
			out = append(out, &cp)
		}
	}
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (l *memLedger) CountMarkets(context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int64(len(l.st.markets)), nil
}

func (l *memLedger) Position(_ context.Context, marketID uint64, participant common.Address) (*domain.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.st.positions[posKey{marketID, participant}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *pos
	return &cp, nil
}

func (l *memLedger) MarketPositions(_ context.Context, marketID uint64) ([]*domain.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []*domain.Position
	for k, pos := range l.st.positions {
		if k.market == marketID {
			cp := *pos
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (l *memLedger) Balance(_ context.Context, owner, asset common.Address) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.st.balances[acctKey{owner, asset}], nil
}

var _ domain.Ledger = (*memLedger)(nil)

type memTx struct {
	st *memState
}

func (t *memTx) InsertProtocol(_ context.Context, p *domain.Protocol) error {
	if t.st.protocol != nil {
		return domain.ErrAlreadyExists
	}
	cp := *p
	t.st.protocol = &cp
	return nil
}

func (t *memTx) Protocol(context.Context) (*domain.Protocol, error) {
	if t.st.protocol == nil {
		return nil, domain.ErrNotFound
	}
	p := *t.st.protocol
	return &p, nil
}

func (t *memTx) LockProtocol(ctx context.Context) (*domain.Protocol, error) {
	return t.Protocol(ctx)
}

func (t *memTx) SaveProtocol(_ context.Context, p *domain.Protocol) error {
	if t.st.protocol == nil {
		return domain.ErrNotFound
	}
	cp := *p
	t.st.protocol = &cp
	return nil
}

func (t *memTx) InsertMarket(_ context.Context, m *domain.Market) error {
	if _, ok := t.st.markets[m.ID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *m
	t.st.markets[m.ID] = &cp
	return nil
}

func (t *memTx) LockMarket(_ context.Context, id uint64) (*domain.Market, error) {
	m, ok := t.st.markets[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (t *memTx) SaveMarket(_ context.Context, m *domain.Market) error {
	if _, ok := t.st.markets[m.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *m
	t.st.markets[m.ID] = &cp
	return nil
}

func (t *memTx) InsertPosition(_ context.Context, pos *domain.Position) error {
	k := posKey{pos.MarketID, pos.Participant}
	if _, ok := t.st.positions[k]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *pos
	t.st.positions[k] = &cp
	return nil
}

func (t *memTx) LockPosition(_ context.Context, marketID uint64, participant common.Address) (*domain.Position, error) {
	pos, ok := t.st.positions[posKey{marketID, participant}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *pos
	return &cp, nil
}

func (t *memTx) SavePosition(_ context.Context, pos *domain.Position) error {
	k := posKey{pos.MarketID, pos.Participant}
	if _, ok := t.st.positions[k]; !ok {
		return domain.ErrNotFound
	}
	cp := *pos
	t.st.positions[k] = &cp
	return nil
}

func (t *memTx) Transfer(_ context.Context, from, to, asset common.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	fromKey := acctKey{from, asset}
	if t.st.balances[fromKey] < amount {
		return domain.ErrInsufficientFunds
	}
	t.st.balances[fromKey] -= amount
	t.st.balances[acctKey{to, asset}] += amount
	return nil
}

var _ domain.LedgerTx = (*memTx)(nil)

type memCache struct {
	mu sync.Mutex
	m  map[uint64]*domain.Market
}

func newMemCache() *memCache {
	return &memCache{m: make(map[uint64]*domain.Market)}
}

func (c *memCache) Get(_ context.Context, id uint64) (*domain.Market, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.m[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (c *memCache) Set(_ context.Context, m *domain.Market) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *m
	c.m[m.ID] = &cp
	return nil
}

func (c *memCache) Invalidate(_ context.Context, id uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, id)
	return nil
}

type memBus struct {
	mu       sync.Mutex
	messages map[string][][]byte
}

func newMemBus() *memBus {
	return &memBus{messages: make(map[string][][]byte)}
}

func (b *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages[channel] = append(b.messages[channel], payload)
	return nil
}

func (b *memBus) Subscribe(ctx context.Context, _ string) (<-chan []byte, error) {
	out := make(chan []byte)
	go func() {
		<-ctx.Done()
		close(out)
	}()
	return out, nil
}

func (b *memBus) count(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.messages[channel])
}

type memAudit struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (a *memAudit) Log(_ context.Context, event string, detail map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, domain.AuditEntry{Event: event, Detail: detail})
	return nil
}

func (a *memAudit) List(_ context.Context, _ domain.ListOpts) ([]domain.AuditEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.AuditEntry(nil), a.entries...), nil
}

type memLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMemLocks() *memLocks {
	return &memLocks{held: make(map[string]bool)}
}

func (l *memLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, domain.ErrLockHeld
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}, nil
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
