package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	coreerrors "rocket/core/errors"
)

type pendingWrite struct {
	value   []byte
	deleted bool
}

// Tx buffers the writes of one operation. Reads observe the buffer first so an
// operation sees its own effects before commit.
type Tx struct {
	m        *Manager
	readOnly bool
	closed   bool
	writes   map[string]pendingWrite
	order    []string
	entered  map[string]struct{}
	hooks    []func()
}

func newTx(m *Manager, readOnly bool) *Tx {
	return &Tx{
		m:        m,
		readOnly: readOnly,
		writes:   make(map[string]pendingWrite),
		entered:  make(map[string]struct{}),
	}
}

// Get decodes the record stored under key into out. The boolean reports
// whether the record exists.
func (tx *Tx) Get(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := tx.raw(key)
	if err != nil {
		return false, err
	}
	if data == nil {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("kv: decode: %w", err)
	}
	return true, nil
}

// Put encodes value and buffers it under key.
func (tx *Tx) Put(key []byte, value interface{}) error {
	if tx.readOnly {
		return ErrReadOnly
	}
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("kv: encode: %w", err)
	}
	tx.stage(key, pendingWrite{value: encoded})
	return nil
}

// Delete buffers the removal of key.
func (tx *Tx) Delete(key []byte) error {
	if tx.readOnly {
		return ErrReadOnly
	}
	tx.stage(key, pendingWrite{deleted: true})
	return nil
}

// NextID returns the next value of the named sequence, starting at 1.
func (tx *Tx) NextID(sequence string) (uint64, error) {
	key := Key("seq", []byte(sequence))
	var current uint64
	if _, err := tx.Get(key, &current); err != nil {
		return 0, err
	}
	current++
	if err := tx.Put(key, current); err != nil {
		return 0, err
	}
	return current, nil
}

// Enter marks module as executing inside this transaction. A second entry
// before the returned release runs fails with ErrReentrantCall.
func (tx *Tx) Enter(module string) (func(), error) {
	if _, busy := tx.entered[module]; busy {
		return nil, coreerrors.New(coreerrors.ErrReentrantCall, module, "operation already in progress")
	}
	tx.entered[module] = struct{}{}
	return func() { delete(tx.entered, module) }, nil
}

// OnCommit registers fn to run once the enclosing transaction has committed.
// Hooks of aborted transactions never run.
func (tx *Tx) OnCommit(fn func()) {
	if fn == nil || tx.readOnly {
		return
	}
	tx.hooks = append(tx.hooks, fn)
}

// Pending returns the number of buffered writes.
func (tx *Tx) Pending() int { return len(tx.order) }

func (tx *Tx) stage(key []byte, w pendingWrite) {
	k := string(key)
	if _, seen := tx.writes[k]; !seen {
		tx.order = append(tx.order, k)
	}
	tx.writes[k] = w
}

func (tx *Tx) raw(key []byte) ([]byte, error) {
	if w, ok := tx.writes[string(key)]; ok {
		if w.deleted {
			return nil, nil
		}
		return w.value, nil
	}
	return tx.m.get(key)
}

func (tx *Tx) commit() error {
	if len(tx.order) == 0 {
		return nil
	}
	batch := tx.m.db.NewBatch()
	for _, k := range tx.order {
		w := tx.writes[k]
		if w.deleted {
			batch.Delete([]byte(k))
			continue
		}
		batch.Put([]byte(k), w.value)
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	return nil
}

func (tx *Tx) close() {
	tx.closed = true
}
