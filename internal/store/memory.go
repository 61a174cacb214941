package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mmaven/paper-trader/internal/models"
	"github.com/shopspring/decimal"
)

// Memory implements Store with in-memory maps. Used for testing. Not
// suitable for production (no persistence).
type Memory struct {
	mu          sync.Mutex
	nextID      int64
	positions   map[string]map[string]*models.Position
	journal     []*models.Transaction
	pnl         []*models.RealizedPnL
	settings    map[string]*models.UserSettings
	trades      map[string]*models.PendingTrade
	settlements map[string]*models.PendingSettlement
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		positions:   make(map[string]map[string]*models.Position),
		settings:    make(map[string]*models.UserSettings),
		trades:      make(map[string]*models.PendingTrade),
		settlements: make(map[string]*models.PendingSettlement),
	}
}

func (m *Memory) nextIDLocked() int64 {
	m.nextID++
	return m.nextID
}

func (m *Memory) GetPosition(_ context.Context, userID, stockCode string) (*models.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.positions[userID][stockCode]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *Memory) ListPositions(_ context.Context, userID string) ([]*models.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var positions []*models.Position
	for _, p := range m.positions[userID] {
		if p.Shares > 0 {
			cp := *p
			positions = append(positions, &cp)
		}
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].StockCode < positions[j].StockCode
	})
	return positions, nil
}

func (m *Memory) ApplyTrade(_ context.Context, update *TradeUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	userID := update.Entry.UserID
	if update.ResolvePendingTrade {
		if _, ok := m.trades[userID]; !ok {
			return ErrNotFound
		}
	}
	if update.ResolvePendingSettlement {
		if _, ok := m.settlements[userID]; !ok {
			return ErrNotFound
		}
	}
	if update.ResolvePendingTrade {
		delete(m.trades, userID)
	}
	if update.ResolvePendingSettlement {
		delete(m.settlements, userID)
	}

	if p := update.Position; p != nil {
		cp := *p
		cp.UpdatedAt = time.Now()
		byCode, ok := m.positions[cp.UserID]
		if !ok {
			byCode = make(map[string]*models.Position)
			m.positions[cp.UserID] = byCode
		}
		if existing, ok := byCode[cp.StockCode]; ok {
			cp.ID = existing.ID
		} else {
			cp.ID = m.nextIDLocked()
		}
		byCode[cp.StockCode] = &cp
		p.ID = cp.ID
	}

	entry := *update.Entry
	entry.ID = m.nextIDLocked()
	m.journal = append(m.journal, &entry)
	update.Entry.ID = entry.ID

	if update.PnL != nil {
		record := *update.PnL
		record.ID = m.nextIDLocked()
		m.pnl = append(m.pnl, &record)
		update.PnL.ID = record.ID
	}
	return nil
}

func (m *Memory) RecentTransactions(_ context.Context, userID string, limit int) ([]*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var entries []*models.Transaction
	for i := len(m.journal) - 1; i >= 0 && len(entries) < limit; i-- {
		if m.journal[i].UserID == userID {
			cp := *m.journal[i]
			entries = append(entries, &cp)
		}
	}
	return entries, nil
}

func (m *Memory) RealizedPnLStats(_ context.Context, userID string) (*models.PnLStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := &models.PnLStats{Total: decimal.Zero}
	for _, r := range m.pnl {
		if r.UserID != userID {
			continue
		}
		stats.Total = stats.Total.Add(r.ProfitLoss)
		stats.Entries++
		switch {
		case r.ProfitLoss.IsPositive():
			stats.Wins++
		case r.ProfitLoss.IsNegative():
			stats.Losses++
		}
	}
	return stats, nil
}

func (m *Memory) AppendRealizedPnL(_ context.Context, entry *models.RealizedPnL) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record := *entry
	record.ID = m.nextIDLocked()
	m.pnl = append(m.pnl, &record)
	entry.ID = record.ID
	return nil
}

func (m *Memory) GetOrCreateSettings(_ context.Context, userID string) (*models.UserSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.settings[userID]
	if !ok {
		s = models.DefaultSettings(userID)
		s.CreatedAt = time.Now()
		s.UpdatedAt = s.CreatedAt
		m.settings[userID] = s
	}
	cp := *s
	return &cp, nil
}

func (m *Memory) SaveSettings(_ context.Context, settings *models.UserSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *settings
	cp.UpdatedAt = time.Now()
	m.settings[cp.UserID] = &cp
	return nil
}

func (m *Memory) GetPendingTrade(_ context.Context, userID string) (*models.PendingTrade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.trades[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *Memory) SavePendingTrade(_ context.Context, trade *models.PendingTrade) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *trade
	m.trades[cp.UserID] = &cp
	return nil
}

func (m *Memory) DeletePendingTrade(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.trades[userID]; !ok {
		return ErrNotFound
	}
	delete(m.trades, userID)
	return nil
}

func (m *Memory) GetPendingSettlement(_ context.Context, userID string) (*models.PendingSettlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.settlements[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *Memory) SavePendingSettlement(_ context.Context, settlement *models.PendingSettlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *settlement
	m.settlements[cp.UserID] = &cp
	return nil
}

func (m *Memory) DeletePendingSettlement(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.settlements[userID]; !ok {
		return ErrNotFound
	}
	delete(m.settlements, userID)
	return nil
}
