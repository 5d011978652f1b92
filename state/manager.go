package state

import (
	"context"
	"errors"
	"fmt"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"rocket/storage"
)

// ErrReadOnly is returned when a write is attempted through a View transaction.
var ErrReadOnly = errors.New("state: read-only transaction")

type txContextKey struct{}

// Manager serialises every state-changing operation behind a single writer
// and applies its buffered writes as one atomic storage batch.
type Manager struct {
	mu sync.RWMutex
	db storage.Database

	// Commits draw tickets under mu; hooks run strictly in ticket order.
	hookMu     sync.Mutex
	hookCond   *sync.Cond
	nextTicket uint64
	hookTurn   uint64
}

// NewManager wraps the supplied database.
func NewManager(db storage.Database) *Manager {
	if db == nil {
		db = storage.NewMemDB()
	}
	m := &Manager{db: db}
	m.hookCond = sync.NewCond(&m.hookMu)
	return m
}

// Update runs fn inside a write transaction. When fn returns nil the buffered
// writes are committed atomically and the commit hooks run afterwards, in
// commit order across transactions; any error discards every write. Hooks may
// read through View but must not open write transactions on the same manager.
// A context already carrying a transaction of this manager joins it instead of opening a new one, so nested component calls
// commit or abort together with their caller.
func (m *Manager) Update(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if tx := FromContext(ctx); tx != nil && tx.m == m {
		if tx.readOnly {
			return ErrReadOnly
		}
		return fn(ctx, tx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := newTx(m, false)
	var ticket uint64
	err := func() error {
		m.mu.Lock()
		defer m.mu.Unlock()
		defer tx.close()
		if err := fn(context.WithValue(ctx, txContextKey{}, tx), tx); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := tx.commit(); err != nil {
			return err
		}
		ticket = m.takeTicket()
		return nil
	}()
	if err != nil {
		return err
	}
	m.runHooks(ticket, tx.hooks)
	return nil
}

func (m *Manager) takeTicket() uint64 {
	m.hookMu.Lock()
	defer m.hookMu.Unlock()
	t := m.nextTicket
	m.nextTicket++
	return t
}

// runHooks waits for every earlier commit to finish its hooks, runs hooks and
// passes the turn on.
func (m *Manager) runHooks(ticket uint64, hooks []func()) {
	m.hookMu.Lock()
	for m.hookTurn != ticket {
		m.hookCond.Wait()
	}
	m.hookMu.Unlock()
	defer func() {
		m.hookMu.Lock()
		m.hookTurn++
		m.hookMu.Unlock()
		m.hookCond.Broadcast()
	}()
	for _, hook := range hooks {
		hook()
	}
}

// View runs fn against a consistent snapshot of committed state. A context
// carrying a live transaction of this manager reads through that transaction.
func (m *Manager) View(ctx context.Context, fn func(tx *Tx) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if tx := FromContext(ctx); tx != nil && tx.m == m {
		return fn(tx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	tx := newTx(m, true)
	defer tx.close()
	return fn(tx)
}

// FromContext returns the live transaction carried by ctx, if any.
func FromContext(ctx context.Context) *Tx {
	if ctx == nil {
		return nil
	}
	tx, _ := ctx.Value(txContextKey{}).(*Tx)
	if tx == nil || tx.closed {
		return nil
	}
	return tx
}

// Key derives the storage key for a record from a namespace and its fields.
func Key(namespace string, parts ...[]byte) []byte {
	buf := make([]byte, 0, len(namespace)+1+32*len(parts))
	buf = append(buf, namespace...)
	for _, part := range parts {
		buf = append(buf, 0)
		buf = append(buf, part...)
	}
	return ethcrypto.Keccak256(buf)
}

// U64 encodes an identifier for use as a key part.
func U64(v uint64) []byte {
	return []byte{
		byte(v >> 56), byte(v >> 48), byte(v >> 40), byte(v >> 32),
		byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v),
	}
}

func (m *Manager) get(key []byte) ([]byte, error) {
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("state: read: %w", err)
	}
	return data, nil
}
