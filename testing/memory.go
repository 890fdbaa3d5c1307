package testing

import (
	"context"
	"sync"
	"time"

	"github.com/amirphl/hopgate/models"
)

// MemoryRoutingSource serves routing tables from memory with failure injection
type MemoryRoutingSource struct {
	mu     sync.Mutex
	tables *models.RoutingTables
	err    error
	calls  int
	// OnLoad, when set, builds the tables for each call instead of the stored ones
	OnLoad func(call int) (*models.RoutingTables, error)
}

func NewMemoryRoutingSource(tables *models.RoutingTables) *MemoryRoutingSource {
	return &MemoryRoutingSource{tables: tables}
}

func (s *MemoryRoutingSource) SetTables(tables *models.RoutingTables) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = tables
}

// SetError makes subsequent loads fail with err; nil restores normal loads
func (s *MemoryRoutingSource) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *MemoryRoutingSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *MemoryRoutingSource) LoadRoutingTables(ctx context.Context) (*models.RoutingTables, error) {
	s.mu.Lock()
	s.calls++
	call, tables, err, onLoad := s.calls, s.tables, s.err, s.OnLoad
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if onLoad != nil {
		return onLoad(call)
	}
	if err != nil {
		return nil, err
	}
	return tables, nil
}

// StoreFaults configures how a memory store misbehaves
type StoreFaults struct {
	Err   error
	Delay time.Duration
	Panic bool
}

// MemoryClickLogStore records click log inserts
type MemoryClickLogStore struct {
	mu       sync.Mutex
	rows     []models.ClickLog
	attempts int
	faults   StoreFaults
	nextID   uint
}

func NewMemoryClickLogStore() *MemoryClickLogStore {
	return &MemoryClickLogStore{}
}

func (s *MemoryClickLogStore) SetFaults(f StoreFaults) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = f
}

func (s *MemoryClickLogStore) Save(ctx context.Context, click *models.ClickLog) error {
	s.mu.Lock()
	s.attempts++
	faults := s.faults
	s.mu.Unlock()

	if err := applyFaults(ctx, faults); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	click.ID = s.nextID
	if click.CreatedAt.IsZero() {
		click.CreatedAt = time.Now().UTC()
	}
	s.rows = append(s.rows, *click)
	return nil
}

// Attempts counts every Save call, failed ones included
func (s *MemoryClickLogStore) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

func (s *MemoryClickLogStore) Rows() []models.ClickLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ClickLog(nil), s.rows...)
}

// MemoryImpressionStore records impression inserts
type MemoryImpressionStore struct {
	mu       sync.Mutex
	rows     []models.Impression
	attempts int
	faults   StoreFaults
	nextID   uint
}

func NewMemoryImpressionStore() *MemoryImpressionStore {
	return &MemoryImpressionStore{}
}

func (s *MemoryImpressionStore) SetFaults(f StoreFaults) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = f
}

func (s *MemoryImpressionStore) Save(ctx context.Context, impression *models.Impression) error {
	s.mu.Lock()
	s.attempts++
	faults := s.faults
	s.mu.Unlock()

	if err := applyFaults(ctx, faults); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	impression.ID = s.nextID
	if impression.CreatedAt.IsZero() {
		impression.CreatedAt = time.Now().UTC()
	}
	s.rows = append(s.rows, *impression)
	return nil
}

func (s *MemoryImpressionStore) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

func (s *MemoryImpressionStore) Rows() []models.Impression {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Impression(nil), s.rows...)
}

func applyFaults(ctx context.Context, f StoreFaults) error {
	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.Panic {
		panic("memory store: injected panic")
	}
	return f.Err
}
