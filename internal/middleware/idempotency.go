package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/forgo/craftlink/internal/clock"
	"github.com/forgo/craftlink/internal/model"
)

// IdempotencyKeyHeader names the client-supplied key for creating requests
const (
	IdempotencyKeyHeader   = "Idempotency-Key"
	IdempotencyReplayedHdr = "X-Idempotency-Replayed"
	maxIdempotentBodyBytes = 1 << 20
)

// IdempotencyStore remembers successful responses to creating requests so a
// retried POST with the same key does not create a second engagement
type IdempotencyStore struct {
	mu       sync.Mutex
	entries  map[string]*idempotencyEntry
	ttl      time.Duration
	clock    clock.Clock
	stopOnce sync.Once
	stopChan chan struct{}
}

type idempotencyEntry struct {
	status    int
	headers   http.Header
	body      []byte
	expiresAt time.Time
	done      chan struct{} // closed once the first request finishes
	committed bool
}

// IdempotencyConfig holds configuration for idempotency middleware
type IdempotencyConfig struct {
	TTL     time.Duration // how long a replay stays available (default 24h)
	Cleanup time.Duration // sweep interval (default 1h)
	Clock   clock.Clock
}

// NewIdempotencyStore creates a store and starts its sweeper
func NewIdempotencyStore(cfg IdempotencyConfig) *IdempotencyStore {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.Cleanup <= 0 {
		cfg.Cleanup = time.Hour
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}

	store := &IdempotencyStore{
		entries:  make(map[string]*idempotencyEntry),
		ttl:      cfg.TTL,
		clock:    cfg.Clock,
		stopChan: make(chan struct{}),
	}

	ticker := cfg.Clock.NewTicker(cfg.Cleanup)
	go store.cleanupLoop(ticker)

	return store
}

// Stop stops the sweeper. Safe to call more than once.
func (s *IdempotencyStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

// Len reports how many keys are held
func (s *IdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *IdempotencyStore) cleanupLoop(ticker clock.Ticker) {
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C():
			s.sweep()
		case <-s.stopChan:
			return
		}
	}
}

func (s *IdempotencyStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	for key, entry := range s.entries {
		if entry.committed && !entry.expiresAt.After(now) {
			delete(s.entries, key)
		}
	}
}

// claim returns the entry already holding key, or registers a new in-flight
// entry and reports that the caller owns it
func (s *IdempotencyStore) claim(key string) (*idempotencyEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[key]; ok {
		if !entry.committed || entry.expiresAt.After(s.clock.Now()) {
			return entry, false
		}
	}
	entry := &idempotencyEntry{done: make(chan struct{})}
	s.entries[key] = entry
	return entry, true
}

// finish records the outcome of the owning request. Only written 2xx
// responses are kept; anything else releases the key so the client can retry.
func (s *IdempotencyStore) finish(key string, entry *idempotencyEntry, rw *capturingWriter) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rw.wrote && rw.status >= 200 && rw.status < 300 {
		entry.status = rw.status
		entry.headers = rw.Header().Clone()
		entry.body = rw.body.Bytes()
		entry.expiresAt = s.clock.Now().Add(s.ttl)
		entry.committed = true
	} else if s.entries[key] == entry {
		delete(s.entries, key)
	}
	close(entry.done)
}

// fingerprint binds the key to the caller and the exact request
func fingerprint(userID, idempotencyKey, method, path string, body []byte) string {
	h := sha256.New()
	for _, part := range []string{userID, idempotencyKey, method, path} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// capturingWriter tees the response so it can be replayed
type capturingWriter struct {
	http.ResponseWriter
	status int
	wrote  bool
	body   bytes.Buffer
}

func (w *capturingWriter) WriteHeader(status int) {
	w.status = status
	w.wrote = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *capturingWriter) Write(b []byte) (int, error) {
	w.wrote = true
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func replay(w http.ResponseWriter, entry *idempotencyEntry) {
	for k, v := range entry.headers {
		for _, val := range v {
			w.Header().Add(k, val)
		}
	}
	w.Header().Set(IdempotencyReplayedHdr, "true")
	w.WriteHeader(entry.status)
	_, _ = w.Write(entry.body)
}

// Idempotency returns middleware that honours Idempotency-Key on POST
// requests. Keys are scoped to the authenticated user, so it must run after
// Auth.
func Idempotency(store *IdempotencyStore) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			idempotencyKey := r.Header.Get(IdempotencyKeyHeader)
			if r.Method != http.MethodPost || idempotencyKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			userID := GetUserID(r.Context())
			if userID == "" {
				userID = r.RemoteAddr
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxIdempotentBodyBytes))
			if err != nil {
				model.NewBadRequestError("failed to read request body").WriteJSON(w)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			key := fingerprint(userID, idempotencyKey, r.Method, r.URL.Path, body)

			for {
				entry, owner := store.claim(key)
				if owner {
					rw := &capturingWriter{ResponseWriter: w, status: http.StatusOK}
					defer store.finish(key, entry, rw)
					next.ServeHTTP(rw, r)
					return
				}

				select {
				case <-entry.done:
				case <-r.Context().Done():
					return
				}
				if entry.committed {
					replay(w, entry)
					return
				}
				// The first attempt failed and released the key; try to own it
			}
		})
	}
}
