package rpc

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"lukechampine.com/blake3"

	"rocket/gateway/middleware"
)

const (
	IdempotencyKeyHeader    = "Idempotency-Key"
	IdempotentReplayHeader  = "Idempotent-Replay"
	maxIdempotencyKeyLength = 128
)

const idempotencySchema = `
CREATE TABLE IF NOT EXISTS idempotency (
	caller      TEXT    NOT NULL,
	key         TEXT    NOT NULL,
	fingerprint TEXT    NOT NULL,
	status      INTEGER NOT NULL,
	body        BLOB    NOT NULL,
	created_at  INTEGER NOT NULL,
	PRIMARY KEY (caller, key)
)`

// IdempotencyStore remembers POST responses per (caller, Idempotency-Key) so
// retried requests replay the first outcome instead of executing twice.
type IdempotencyStore struct {
	db    *sql.DB
	ttl   time.Duration
	nowFn func() time.Time

	mu       sync.Mutex
	inflight map[string]struct{}
}

type storedResponse struct {
	fingerprint string
	status      int
	body        []byte
}

// OpenIdempotencyStore opens the sqlite database at path through the same
// driver as the reporting store. ":memory:" keeps the store in process.
func OpenIdempotencyStore(path string, ttl time.Duration) (*IdempotencyStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("idempotency store path is required")
	}
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(idempotencySchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create idempotency table: %w", err)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{db: db, ttl: ttl, nowFn: time.Now, inflight: make(map[string]struct{})}, nil
}

// Close closes the sqlite handle.
func (s *IdempotencyStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *IdempotencyStore) lookup(ctx context.Context, caller, key string) (*storedResponse, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT fingerprint, status, body FROM idempotency WHERE caller = ? AND key = ? AND created_at >= ?`,
		caller, key, s.nowFn().Add(-s.ttl).Unix())
	var resp storedResponse
	if err := row.Scan(&resp.fingerprint, &resp.status, &resp.body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &resp, nil
}

func (s *IdempotencyStore) save(ctx context.Context, caller, key string, resp storedResponse) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO idempotency (caller, key, fingerprint, status, body, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		caller, key, resp.fingerprint, resp.status, resp.body, s.nowFn().Unix())
	return err
}

// Purge drops entries older than the retention window and returns how many
// were removed.
func (s *IdempotencyStore) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM idempotency WHERE created_at < ?`, s.nowFn().Add(-s.ttl).Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *IdempotencyStore) acquire(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[id]; busy {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *IdempotencyStore) release(id string) {
	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
}

func fingerprint(method, path string, body []byte) string {
	h := blake3.New(32, nil)
	_, _ = io.WriteString(h, method)
	_, _ = io.WriteString(h, "\n")
	_, _ = io.WriteString(h, path)
	_, _ = io.WriteString(h, "\n")
	_, _ = h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

type captureWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (c *captureWriter) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *captureWriter) Write(p []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(p)
	return c.ResponseWriter.Write(p)
}

// idempotent replays stored responses for a repeated Idempotency-Key and
// records new ones. Server errors are not recorded so the client may retry.
func (s *Server) idempotent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
		if s.idem == nil || key == "" {
			next.ServeHTTP(w, r)
			return
		}
		if len(key) > maxIdempotencyKeyLength {
			writeBadRequest(w, "idempotency key too long")
			return
		}
		caller := "anonymous"
		if acct, ok := middleware.CallerFrom(r.Context()); ok {
			caller = hex.EncodeToString(acct[:])
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
		if err != nil {
			writeBadRequest(w, "read request body")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		fp := fingerprint(r.Method, r.URL.Path, body)

		id := caller + "|" + key
		if !s.idem.acquire(id) {
			writeJSON(w, http.StatusConflict, errorResponse{Error: "request with this idempotency key is in progress", Code: "idempotency_in_progress"})
			return
		}
		defer s.idem.release(id)

		stored, err := s.idem.lookup(r.Context(), caller, key)
		if err != nil {
			s.logger.Error("idempotency lookup failed", "error", err)
			writeError(w, err)
			return
		}
		if stored != nil {
			if stored.fingerprint != fp {
				writeJSON(w, http.StatusConflict, errorResponse{Error: "idempotency key reused with a different request", Code: "idempotency_mismatch"})
				return
			}
			w.Header().Set(IdempotentReplayHeader, "true")
			if len(stored.body) > 0 {
				w.Header().Set("Content-Type", "application/json")
			}
			w.WriteHeader(stored.status)
			_, _ = w.Write(stored.body)
			return
		}

		capture := &captureWriter{ResponseWriter: w}
		next.ServeHTTP(capture, r)
		status := capture.status
		if status == 0 {
			status = http.StatusOK
		}
		if status >= http.StatusInternalServerError || status == statusClientClosed {
			return
		}
		if err := s.idem.save(r.Context(), caller, key, storedResponse{fingerprint: fp, status: status, body: capture.body.Bytes()}); err != nil {
			s.logger.Warn("idempotency save failed", "error", err)
		}
	})
}
