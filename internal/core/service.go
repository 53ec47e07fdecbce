package core

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/JonMunkholm/stockrecon/internal/lock"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// Options configures a Service. Zero values fall back to defaults.
type Options struct {
	DefaultCategory string
	DefaultUnit     string
	Delimiter       rune
	MaxFileSize     int64
	ApplyTimeout    time.Duration
}

const (
	DefaultCategory     = "Uncategorized"
	DefaultUnit         = "units"
	DefaultMaxFileSize  = 20 << 20
	DefaultApplyTimeout = 10 * time.Minute
)

func (o Options) withDefaults() Options {
	if o.DefaultCategory == "" {
		o.DefaultCategory = DefaultCategory
	}
	if o.DefaultUnit == "" {
		o.DefaultUnit = DefaultUnit
	}
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = DefaultMaxFileSize
	}
	if o.ApplyTimeout <= 0 {
		o.ApplyTimeout = DefaultApplyTimeout
	}
	return o
}

// Service runs stock imports. Each owner has at most one import session,
// driven through Idle -> Parsed -> Reviewing -> Applying -> Idle. Applies
// for one owner are serialized by the Locker, applies across owners are
// capped by the ApplyLimiter.
type Service struct {
	store   Store
	locker  lock.Locker
	limiter *ApplyLimiter
	applier *BulkApplier
	opts    Options

	mu     sync.Mutex
	owners map[string]*ownerSession
}

type ownerSession struct {
	mu      sync.Mutex
	state   SessionState
	session *ImportSession
	touched time.Time
}

// NewService creates a Service.
func NewService(store Store, locker lock.Locker, limiter *ApplyLimiter, opts Options) *Service {
	opts = opts.withDefaults()
	return &Service{
		store:   store,
		locker:  locker,
		limiter: limiter,
		applier: NewBulkApplier(store, opts.DefaultUnit),
		opts:    opts,
		owners:  make(map[string]*ownerSession),
	}
}

// lockOwner returns the owner's entry with its mutex held, creating the entry
// on first use. Holding s.mu until o.mu is taken keeps the sweeper from
// removing the entry in between.
func (s *Service) lockOwner(ownerID string) *ownerSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.owners[ownerID]
	if !ok {
		o = &ownerSession{state: StateIdle}
		s.owners[ownerID] = o
	}
	o.mu.Lock()
	return o
}

// Preview parses and matches a file without staging it.
func (s *Service) Preview(ctx context.Context, ownerID, fileName string, data []byte) (SessionView, error) {
	sess, err := s.parse(ctx, ownerID, fileName, data)
	if err != nil {
		return SessionView{}, err
	}
	return sess.View(StateParsed), nil
}

// StartImport parses an upload and stages it as the owner's import session,
// replacing any session under review. It fails with ErrApplyInFlight while
// the owner's previous import is being applied.
func (s *Service) StartImport(ctx context.Context, ownerID, fileName string, data []byte) (SessionView, error) {
	o := s.lockOwner(ownerID)
	applying := o.state == StateApplying
	o.mu.Unlock()
	if applying {
		return SessionView{}, errors.Wrapf(ErrApplyInFlight, "owner %s", ownerID)
	}

	sess, err := s.parse(ctx, ownerID, fileName, data)
	if err != nil {
		return SessionView{}, err
	}

	o = s.lockOwner(ownerID)
	defer o.mu.Unlock()

	// An apply may have started while we were parsing.
	if o.state == StateApplying {
		return SessionView{}, errors.Wrapf(ErrApplyInFlight, "owner %s", ownerID)
	}
	if o.session != nil {
		slog.InfoContext(ctx, "import session replaced",
			"owner_id", ownerID,
			"previous_session_id", o.session.ID,
			"session_id", sess.ID,
		)
	}
	o.session = sess
	o.state = StateParsed
	o.touched = time.Now()

	return sess.View(o.state), nil
}

func (s *Service) parse(ctx context.Context, ownerID, fileName string, data []byte) (*ImportSession, error) {
	if int64(len(data)) > s.opts.MaxFileSize {
		return nil, errors.Newf("file too large: %d bytes exceeds limit of %d", len(data), s.opts.MaxFileSize)
	}

	sheet, err := Decode(data, fileName, DecodeOptions{Delimiter: s.opts.Delimiter})
	if err != nil {
		return nil, err
	}

	cols, err := ResolveColumns(sheet.Headers)
	if err != nil {
		return nil, err
	}

	rows, warnings := NormalizeRows(sheet, cols)
	logWarnings(ctx, ownerID, fileName, warnings)

	catalog, err := s.store.ListProducts(ctx, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "load catalog")
	}

	set := MatchRows(rows, catalog)
	sess := NewImportSession(ownerID, fileName, cols, set, warnings, s.opts.DefaultCategory)

	slog.InfoContext(ctx, "import parsed",
		"owner_id", ownerID,
		"session_id", sess.ID,
		"file", fileName,
		"rows", len(rows),
		"matched", len(set.Matched),
		"unmatched", len(set.Unmatched),
		"warnings", len(warnings),
	)
	return sess, nil
}

func logWarnings(ctx context.Context, ownerID, fileName string, warnings []RowParseWarning) {
	for _, w := range warnings {
		slog.WarnContext(ctx, "row parse warning",
			"owner_id", ownerID,
			"file", fileName,
			"line", w.Line,
			"column", w.Column,
			"value", w.Value,
			"message", w.Message,
		)
	}
}

// Session returns the owner's current import session.
func (s *Service) Session(ownerID string) (SessionView, error) {
	o := s.lockOwner(ownerID)
	defer o.mu.Unlock()

	if o.session == nil {
		return SessionView{}, ErrSessionNotFound
	}
	return o.session.View(o.state), nil
}

// ToggleRow flips the selection of one staged row.
func (s *Service) ToggleRow(ownerID string, rowID uuid.UUID) (SessionView, error) {
	return s.review(ownerID, func(sess *ImportSession) error {
		_, err := sess.ToggleRow(rowID)
		return err
	})
}

// ToggleRowAt flips the selection of a row addressed by partition and index.
func (s *Service) ToggleRowAt(ownerID string, partition Partition, index int) (SessionView, error) {
	return s.review(ownerID, func(sess *ImportSession) error {
		_, err := sess.ToggleRowAt(partition, index)
		return err
	})
}

// SetDefaultCategory changes the category given to new products.
func (s *Service) SetDefaultCategory(ownerID, category string) (SessionView, error) {
	return s.review(ownerID, func(sess *ImportSession) error {
		sess.SetDefaultCategory(category)
		return nil
	})
}

// review applies an edit to the owner's session and moves it to Reviewing.
func (s *Service) review(ownerID string, edit func(*ImportSession) error) (SessionView, error) {
	o := s.lockOwner(ownerID)
	defer o.mu.Unlock()

	switch {
	case o.state == StateApplying:
		return SessionView{}, errors.Wrapf(ErrApplyInFlight, "owner %s", ownerID)
	case o.session == nil:
		return SessionView{}, ErrSessionNotFound
	}

	if err := edit(o.session); err != nil {
		return SessionView{}, err
	}
	o.state = StateReviewing
	o.touched = time.Now()
	return o.session.View(o.state), nil
}

// Reset discards the owner's import session.
func (s *Service) Reset(ownerID string) error {
	o := s.lockOwner(ownerID)
	defer o.mu.Unlock()

	if o.state == StateApplying {
		return errors.Wrapf(ErrApplyInFlight, "owner %s", ownerID)
	}
	o.session = nil
	o.state = StateIdle
	return nil
}

// Apply commits the selected rows of the owner's session. The session is
// discarded afterwards whatever the per-row outcome. Client cancellation does
// not interrupt a running apply; ApplyTimeout bounds it instead.
func (s *Service) Apply(ctx context.Context, ownerID string) (ApplyOutcome, error) {
	o := s.lockOwner(ownerID)
	switch {
	case o.state == StateApplying:
		o.mu.Unlock()
		return ApplyOutcome{}, errors.Wrapf(ErrApplyInFlight, "owner %s", ownerID)
	case o.session == nil:
		o.mu.Unlock()
		return ApplyOutcome{}, ErrSessionNotFound
	case o.state != StateParsed && o.state != StateReviewing:
		state := o.state
		o.mu.Unlock()
		return ApplyOutcome{}, errors.Wrapf(ErrInvalidTransition, "apply from %s", state)
	}
	prev := o.state
	sess := o.session
	o.state = StateApplying
	o.mu.Unlock()

	restore := func() {
		o.mu.Lock()
		o.state = prev
		o.mu.Unlock()
	}

	release, err := s.acquire(ctx, ownerID)
	if err != nil {
		restore()
		return ApplyOutcome{}, err
	}
	defer release()

	applyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ApplyTimeout)
	defer cancel()

	outcome := s.applier.Apply(applyCtx, sess, ActorFromContext(ctx), ReasonBulkImport)

	o.mu.Lock()
	o.session = nil
	o.state = StateIdle
	o.touched = time.Now()
	o.mu.Unlock()

	return outcome, nil
}

// acquire takes the owner's apply lock and a global apply slot.
func (s *Service) acquire(ctx context.Context, ownerID string) (func(), error) {
	unlock, err := s.locker.TryLock(ctx, ownerID)
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			return nil, errors.Mark(err, ErrApplyInFlight)
		}
		return nil, errors.Wrap(err, "acquire apply lock")
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		unlock()
		return nil, err
	}

	return func() {
		s.limiter.Release()
		unlock()
	}, nil
}

// LimiterStatus reports apply slot usage.
func (s *Service) LimiterStatus() ApplyLimiterStatus {
	return s.limiter.Status()
}

// WaitForApplies blocks until running applies finish or ctx is done.
func (s *Service) WaitForApplies(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
