package refdata

import (
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"invoicepipe/internal/logger"
)

// Store owns the live supplier and PO indexes and replaces them wholesale
// when a backing CSV changes on disk.
//
// Readers call Suppliers()/PurchaseOrders() per invoice and get an
// immutable snapshot; the swap is a single atomic pointer store, so a
// reader sees either the old index or the new one, never a partial
// reload.
type Store struct {
	suppliersPath string
	poPath        string
	poLinesPath   string

	suppliers atomic.Pointer[SupplierIndex]
	orders    atomic.Pointer[POIndex]

	mu     sync.Mutex // guards mtimes; reload is single-flight
	mtimes map[string]time.Time

	log zerolog.Logger
}

// NewStore loads both indexes and remembers the file mtimes for reload
// checks. Missing files are tolerated (the matchers degrade to no-op).
func NewStore(suppliersPath, poPath, poLinesPath string) (*Store, error) {
	s := &Store{
		suppliersPath: suppliersPath,
		poPath:        poPath,
		poLinesPath:   poLinesPath,
		mtimes:        make(map[string]time.Time),
		log:           logger.WithComponent("refdata"),
	}

	suppliers, err := LoadSupplierIndex(suppliersPath)
	if err != nil {
		return nil, err
	}
	orders, err := LoadPOIndex(poPath, poLinesPath)
	if err != nil {
		return nil, err
	}

	s.suppliers.Store(suppliers)
	s.orders.Store(orders)
	s.mtimes = s.currentMTimes()
	return s, nil
}

// Suppliers returns the current supplier index snapshot.
func (s *Store) Suppliers() *SupplierIndex {
	return s.suppliers.Load()
}

// PurchaseOrders returns the current PO index snapshot.
func (s *Store) PurchaseOrders() *POIndex {
	return s.orders.Load()
}

// ReloadIfChanged re-reads any index whose backing file mtime moved since
// the last load. A failed reload keeps the previous snapshot in place.
func (s *Store) ReloadIfChanged() {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.currentMTimes()

	if current[s.suppliersPath] != s.mtimes[s.suppliersPath] {
		s.log.Info().Str("path", s.suppliersPath).Msg("Suppliers CSV changed, reloading")
		if idx, err := LoadSupplierIndex(s.suppliersPath); err != nil {
			s.log.Error().Err(err).Msg("Supplier reload failed, keeping previous index")
		} else {
			s.suppliers.Store(idx)
		}
	}

	if current[s.poPath] != s.mtimes[s.poPath] || current[s.poLinesPath] != s.mtimes[s.poLinesPath] {
		s.log.Info().Str("path", s.poPath).Msg("PO CSVs changed, reloading")
		if idx, err := LoadPOIndex(s.poPath, s.poLinesPath); err != nil {
			s.log.Error().Err(err).Msg("PO reload failed, keeping previous index")
		} else {
			s.orders.Store(idx)
		}
	}

	s.mtimes = current
}

func (s *Store) currentMTimes() map[string]time.Time {
	mtimes := make(map[string]time.Time, 3)
	for _, path := range []string{s.suppliersPath, s.poPath, s.poLinesPath} {
		if info, err := os.Stat(path); err == nil {
			mtimes[path] = info.ModTime()
		}
	}
	return mtimes
}
