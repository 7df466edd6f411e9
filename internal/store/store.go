// Package store keeps the subscriber set and per-user check history.
//
// Each of the two documents is rewritten whole on every change. Every
// read-modify-write cycle on a document runs under that document's lock, and
// the backend replaces documents atomically, so concurrent callers never lose
// an update and a crash never leaves a half-written snapshot.
package store

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/stellarlinkco/leakguard/internal/classify"
	"github.com/stellarlinkco/leakguard/internal/metrics"
)

const (
	DocSubscribers = "subscribers"
	DocHistory     = "history"
)

var (
	// ErrPersist wraps failures writing a snapshot. Nothing was changed.
	ErrPersist = errors.New("state persistence error")
	// ErrCorrupt wraps a stored document that cannot be decoded.
	ErrCorrupt = errors.New("stored document is corrupt")
	// ErrUntrackedKind is returned when recording history for a kind that has none.
	ErrUntrackedKind = errors.New("history not tracked for kind")
)

// UserHistory lists the values a user checked that produced a notable
// result, in first-seen order, one list per tracked kind.
type UserHistory struct {
	Email []string `json:"email"`
	Phone []string `json:"phone"`
	IP    []string `json:"ip"`
}

func (h *UserHistory) list(kind classify.Kind) (*[]string, error) {
	switch kind {
	case classify.KindEmail:
		return &h.Email, nil
	case classify.KindPhone:
		return &h.Phone, nil
	case classify.KindIP:
		return &h.IP, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUntrackedKind, kind)
	}
}

// Values returns the recorded values for kind, or nil for an untracked kind.
func (h UserHistory) Values(kind classify.Kind) []string {
	l, err := h.list(kind)
	if err != nil {
		return nil
	}
	return *l
}

// Len is the total number of recorded values.
func (h UserHistory) Len() int {
	return len(h.Email) + len(h.Phone) + len(h.IP)
}

func (h UserHistory) clone() UserHistory {
	return UserHistory{
		Email: nonNil(slices.Clone(h.Email)),
		Phone: nonNil(slices.Clone(h.Phone)),
		IP:    nonNil(slices.Clone(h.IP)),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

type Store struct {
	backend Backend
	logger  zerolog.Logger
	metrics metrics.Recorder

	subMu  sync.Mutex
	histMu sync.Mutex
}

func New(backend Backend, logger zerolog.Logger, rec metrics.Recorder) *Store {
	if rec == nil {
		rec = metrics.Noop{}
	}
	return &Store{
		backend: backend,
		logger:  logger,
		metrics: rec,
	}
}

func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) IsSubscribed(id int64) (bool, error) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	subs, err := s.loadSubscribers()
	if err != nil {
		return false, err
	}
	return slices.Contains(subs, id), nil
}

// Subscribe adds id and reports whether it was absent before.
func (s *Store) Subscribe(id int64) (bool, error) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	subs, err := s.loadSubscribers()
	if err != nil {
		return false, err
	}
	if slices.Contains(subs, id) {
		return false, nil
	}
	if err := s.save(DocSubscribers, append(subs, id)); err != nil {
		return false, err
	}
	s.logger.Info().Int64("user_id", id).Msg("subscribed")
	return true, nil
}

// Unsubscribe removes id and reports whether it was present.
func (s *Store) Unsubscribe(id int64) (bool, error) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	subs, err := s.loadSubscribers()
	if err != nil {
		return false, err
	}
	idx := slices.Index(subs, id)
	if idx < 0 {
		return false, nil
	}
	if err := s.save(DocSubscribers, slices.Delete(subs, idx, idx+1)); err != nil {
		return false, err
	}
	s.logger.Info().Int64("user_id", id).Msg("unsubscribed")
	return true, nil
}

// AllSubscribers returns a copy of the subscriber list in subscription order.
// The caller may iterate it while other goroutines mutate the store.
func (s *Store) AllSubscribers() ([]int64, error) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	return s.loadSubscribers()
}

func (s *Store) SubscriberCount() (int, error) {
	subs, err := s.AllSubscribers()
	if err != nil {
		return 0, err
	}
	return len(subs), nil
}

// RecordHistory appends value to the user's list for kind unless it is
// already there. It reports whether the value was added.
func (s *Store) RecordHistory(id int64, kind classify.Kind, value string) (bool, error) {
	s.histMu.Lock()
	defer s.histMu.Unlock()

	hist, err := s.loadHistory()
	if err != nil {
		return false, err
	}
	user, ok := hist[id]
	if !ok {
		empty := UserHistory{}.clone()
		user = &empty
	}
	list, err := user.list(kind)
	if err != nil {
		return false, err
	}
	if slices.Contains(*list, value) {
		return false, nil
	}
	*list = append(*list, value)
	hist[id] = user

	if err := s.save(DocHistory, hist); err != nil {
		return false, err
	}
	return true, nil
}

// GetHistory returns the user's history; unknown users get empty lists.
func (s *Store) GetHistory(id int64) (UserHistory, error) {
	s.histMu.Lock()
	defer s.histMu.Unlock()

	hist, err := s.loadHistory()
	if err != nil {
		return UserHistory{}, err
	}
	user, ok := hist[id]
	if !ok {
		return UserHistory{}.clone(), nil
	}
	return user.clone(), nil
}

func (s *Store) loadSubscribers() ([]int64, error) {
	var subs []int64
	if err := s.load(DocSubscribers, &subs); err != nil {
		return nil, err
	}
	// A hand-edited file may repeat ids; the set never does.
	out := make([]int64, 0, len(subs))
	for _, id := range subs {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *Store) loadHistory() (map[int64]*UserHistory, error) {
	hist := make(map[int64]*UserHistory)
	if err := s.load(DocHistory, &hist); err != nil {
		return nil, err
	}
	if hist == nil {
		hist = make(map[int64]*UserHistory)
	}
	return hist, nil
}

func (s *Store) load(doc string, out any) error {
	data, err := s.backend.Load(doc)
	if errors.Is(err, ErrDocNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", doc, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		s.logger.Error().Err(err).Str("doc", doc).Msg("stored document cannot be decoded")
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, doc, err)
	}
	return nil
}

func (s *Store) save(doc string, v any) error {
	start := time.Now()
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrPersist, doc, err)
	}
	if err := s.backend.Save(doc, data); err != nil {
		s.logger.Error().Err(err).Str("doc", doc).Msg("snapshot write failed")
		return fmt.Errorf("%w: save %s: %v", ErrPersist, doc, err)
	}
	s.metrics.ObserveStoreWrite(doc, time.Since(start))
	return nil
}
