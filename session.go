package browserlens

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"browserlens/internal/differ"
	"browserlens/internal/extract"
	"browserlens/internal/filter"
	"browserlens/internal/recorder"
	"browserlens/internal/refs"
	"browserlens/internal/router"
	"browserlens/internal/signals"
	"browserlens/internal/snapshot"
	"browserlens/internal/statetree"
)

// state is the orchestrator's three-state machine.
type state int

const (
	stateFresh state = iota
	stateDiffing
	stateRecovering
)

// Session is one observation pipeline: a signal cache, a snapshot store, a
// reference manager, and the state machine that ties them together.
// Observe() and Reset() are the only methods that touch a Session's mutable
// state; a reentrant Observe() call is rejected with ConcurrentObservation
// rather than serialized.
type Session struct {
	mu sync.Mutex

	id     string
	logger *zap.Logger

	cfg        Config
	thresholds router.Thresholds
	extractOpt extract.Options
	predicates []filter.Predicate

	store    *snapshot.Store
	refMgr   *refs.Manager
	sigCache *signals.Cache
	rec      *recorder.Recorder

	st          state
	busy        bool
	lastOrigin  string
}

// newSession builds a Session from a resolved Config. Unexported: callers
// go through CreateSession.
func newSession(cfg Config, logger *zap.Logger, rec *recorder.Recorder) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.NewString()
	s := &Session{
		id:     id,
		logger: logger.With(zap.String("session_id", id)),
		cfg:    cfg,
		thresholds: router.Thresholds{
			A11yFullThreshold: cfg.Router.A11yFullThreshold,
			DOMNodeCap:        cfg.Router.DOMNodeCap,
			HybridMinCoverage: cfg.Router.HybridMinCoverage,
		},
		extractOpt: extract.Options{
			NameLengthCap: cfg.Router.NameLengthCap,
			DOMTextCap:    240,
		},
		predicates: filter.DefaultPredicates(),
		store:      snapshot.NewStore(),
		refMgr:     refs.NewManager(cfg.Limits.RefSessionCap),
		sigCache:   signals.NewCache(cfg.Limits.SignalCacheCapacity, cfg.Limits.SnapshotTTLDuration()),
		rec:        rec,
		st:         stateFresh,
	}
	if s.rec != nil {
		if err := s.rec.Start(id); err != nil {
			s.logger.Warn("trace recorder start failed, continuing untraced", zap.Error(err))
			s.rec = nil
		}
	}
	return s
}

// ID returns this session's uuid.
func (s *Session) ID() string { return s.id }

// ObserveOptions is the observe() call's option bag: overrides for the
// router, the filter predicates, and whether to force a full emission.
type ObserveOptions struct {
	ForceFull    bool
	Router       router.Func
	Filters      []filter.Predicate
	DynamicProbe bool
}

// ObservationKind distinguishes a full-tree emission from a delta emission.
type ObservationKind string

const (
	KindFull  ObservationKind = "full"
	KindDelta ObservationKind = "delta"
)

// RefEntry is one row of an Observation's refs map: the identity tuple a
// caller can use to recognize a ref across observations without holding
// onto Node pointers.
type RefEntry struct {
	Role       string
	Name       string
	ParentRole string
	Level      int
}

// Observation is the orchestrator's single output type:
// either a full tree or a delta, always paired with the live refs map.
type Observation struct {
	Kind             ObservationKind
	Tree             *statetree.StateTree // set iff Kind == KindFull
	Delta            *statetree.Delta     // set iff Kind == KindDelta
	Refs             map[statetree.Ref]RefEntry
	UnchangedSummary statetree.UnchangedSummary
	CauseHint        statetree.CauseHint
	Representation   router.Kind
}

// Observe runs the full signal-probe/route/extract/diff/filter pipeline
// against page and returns an Observation. Apart from Reset, it is the only
// method that mutates Session state.
func (s *Session) Observe(ctx context.Context, page PageHandle, opts ObserveOptions) (Observation, error) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return Observation{}, newError(ConcurrentObservation, "observe() called while a previous observe() on this session has not committed", nil)
	}
	s.busy = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	obs, err := s.observeLocked(ctx, page, opts)
	if err != nil {
		return Observation{}, err
	}
	return obs, nil
}

func (s *Session) observeLocked(ctx context.Context, page PageHandle, opts ObserveOptions) (Observation, error) {
	routeFn := opts.Router
	if routeFn == nil {
		routeFn = router.Route
	}
	predicates := opts.Filters
	if predicates == nil {
		predicates = s.predicates
	}

	// Phase 1: signals + routing.
	prev := s.store.Get()
	forceFull := opts.ForceFull || prev == nil || s.st == stateRecovering

	probeCtx, cancel := context.WithTimeout(ctx, s.cfg.Limits.SignalProbeTimeoutDuration())
	sig, err := signals.Probe(probeCtx, page, opts.DynamicProbe || s.cfg.Router.DynamicProbe, forceFull, s.sigCache)
	cancel()
	if err != nil {
		return Observation{}, s.fail(PageUnavailable, "signal probe failed", err, false)
	}
	kind := routeFn(sig, s.thresholds)
	navigated := s.lastOrigin != "" && s.lastOrigin != sig.URLOrigin
	s.lastOrigin = sig.URLOrigin

	// Phase 2: extraction.
	extractCtx, cancel := context.WithTimeout(ctx, s.cfg.Limits.ExtractorTimeoutDuration())
	tree, err := s.extract(extractCtx, page, kind)
	cancel()
	if err != nil {
		if extractCtx.Err() == context.DeadlineExceeded {
			return Observation{}, s.fail(ExtractionTimeout, "extractor exceeded its phase budget", err, true)
		}
		return Observation{}, s.fail(PageUnavailable, "extractor failed", err, false)
	}

	var m differ.Matching
	if !forceFull {
		m = differ.Match(prev, tree)
	}

	matched := make(map[*statetree.Node]statetree.Ref)
	if !forceFull {
		for newNode, oldNode := range m.NewToOld {
			matched[newNode] = oldNode.Ref
		}
	}
	overflow := s.refMgr.Assign(tree, matched)
	if overflow {
		forceFull = true
	}

	refs := collectRefs(tree)

	var obs Observation
	if forceFull {
		obs = Observation{
			Kind:           KindFull,
			Tree:           tree,
			Refs:           refs,
			Representation: kind,
		}
	} else {
		diffCtx, cancel := context.WithTimeout(ctx, s.cfg.Limits.DiffTimeoutDuration())
		delta, derr := s.diffWithBudget(diffCtx, prev, tree, m)
		cancel()
		if derr != nil {
			return Observation{}, s.fail(DiffFailure, "tree differ failed", derr, true)
		}
		delta.CauseHint = causeHint(navigated, tree, delta)
		delta = filter.Apply(delta, tree, prev, predicates)
		obs = Observation{
			Kind:             KindDelta,
			Delta:            delta,
			Refs:             refs,
			UnchangedSummary: delta.UnchangedSummary,
			CauseHint:        delta.CauseHint,
			Representation:   kind,
		}
	}

	s.store.Put(tree)
	s.st = stateDiffing

	if s.rec != nil {
		s.rec.Log(traceEvent(s.id, string(kind), obs))
	}
	return obs, nil
}

// diffWithBudget runs BuildDelta and reports a failure if ctx already
// expired (the diff itself is synchronous and in-memory, so the timeout
// only guards against a caller-supplied deadline that was already blown by
// the preceding phases).
func (s *Session) diffWithBudget(ctx context.Context, old, new *statetree.StateTree, m differ.Matching) (*statetree.Delta, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return differ.BuildDelta(old, new, m), nil
}

func (s *Session) extract(ctx context.Context, page PageHandle, kind router.Kind) (*statetree.StateTree, error) {
	switch kind {
	case router.A11Y:
		a11yRoot, err := page.AccessibilitySnapshot(ctx)
		if err != nil {
			return nil, err
		}
		return extract.A11y(a11yRoot, s.extractOpt), nil
	case router.DistilledDOM:
		domRoot, err := page.DOMWalk(ctx)
		if err != nil {
			return nil, err
		}
		return extract.DOM(domRoot, s.extractOpt), nil
	case router.Hybrid:
		a11yRoot, err := page.AccessibilitySnapshot(ctx)
		if err != nil {
			return nil, err
		}
		domRoot, err := page.DOMWalk(ctx)
		if err != nil {
			return nil, err
		}
		return extract.Hybrid(ctx, page, a11yRoot, domRoot, s.extractOpt)
	case router.Vision:
		return extract.Vision(ctx, page)
	default:
		return nil, fmt.Errorf("unknown representation kind %q", kind)
	}
}

// fail maps a phase error to the orchestrator's error-kind policy
// and, when toRecovering is true, moves the session to RECOVERING so the
// next observe() forces a full emission.
func (s *Session) fail(kind Kind, detail string, err error, toRecovering bool) error {
	if toRecovering {
		s.st = stateRecovering
	}
	s.logger.Warn("observe phase failed", zap.String("kind", string(kind)), zap.Error(err))
	return newError(kind, detail, err)
}

// Reset clears the snapshot and ref table, returning the session to FRESH.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.Clear()
	s.refMgr = refs.NewManager(s.cfg.Limits.RefSessionCap)
	s.st = stateFresh
}

// Close releases the session's trace recorder, if any.
func (s *Session) Close() error {
	if s.rec != nil {
		return s.rec.Close()
	}
	return nil
}

func collectRefs(tree *statetree.StateTree) map[statetree.Ref]RefEntry {
	out := make(map[statetree.Ref]RefEntry)
	tree.Walk(func(n, parent *statetree.Node) {
		if n.Ref == "" {
			return
		}
		out[n.Ref] = RefEntry{
			Role:       n.Role,
			Name:       n.Name,
			ParentRole: statetree.ParentRoleOf(parent),
			Level:      n.Level,
		}
	})
	return out
}

// causeHint runs an ordered heuristic rule list: URL change wins first,
// then a burst of new top-level nodes, then a lone focus flip, then
// value-only edits.
func causeHint(navigated bool, new *statetree.StateTree, delta *statetree.Delta) statetree.CauseHint {
	if navigated {
		return statetree.CauseNavigation
	}

	topLevelAdds := 0
	for _, a := range delta.Added {
		if a.Anchor.ParentRef == new.Root.Ref || a.Anchor.ParentRef == "" {
			topLevelAdds++
		}
	}
	if len(new.Root.Children) > 0 && topLevelAdds > 0 {
		ratio := float64(topLevelAdds) / float64(len(new.Root.Children))
		if ratio > 0.3 {
			return statetree.CauseMutation
		}
	}

	if len(delta.Added) == 0 && len(delta.Removed) == 0 && len(delta.Moved) == 0 && len(delta.Changed) > 0 {
		allFocus := true
		allValue := true
		for _, c := range delta.Changed {
			if c.Field != statetree.FieldState || !isFocusFlip(c) {
				allFocus = false
			}
			if c.Field != statetree.FieldValue {
				allValue = false
			}
		}
		if allFocus {
			return statetree.CauseFocus
		}
		if allValue {
			return statetree.CauseInput
		}
	}

	return statetree.CauseUnknown
}

// isFocusFlip reports whether a FieldState change is precisely the
// "focused" flag toggling, as opposed to some other state flag (disabled,
// checked, ...) changing alongside or instead of it.
func isFocusFlip(c statetree.Changed) bool {
	before := flagSet(c.Old)
	after := flagSet(c.New)
	var onlyDiff string
	diffCount := 0
	for f := range before {
		if !after[f] {
			onlyDiff = f
			diffCount++
		}
	}
	for f := range after {
		if !before[f] {
			onlyDiff = f
			diffCount++
		}
	}
	return diffCount == 1 && onlyDiff == string(statetree.Focused)
}

func flagSet(joined string) map[string]bool {
	out := map[string]bool{}
	if joined == "" {
		return out
	}
	for _, f := range strings.Split(joined, ",") {
		out[f] = true
	}
	return out
}

func traceEvent(sessionID, representation string, obs Observation) recorder.Event {
	evt := recorder.Event{
		SessionID:      sessionID,
		Representation: representation,
		Kind:           string(obs.Kind),
	}
	if obs.Delta != nil {
		evt.Added = len(obs.Delta.Added)
		evt.Removed = len(obs.Delta.Removed)
		evt.Changed = len(obs.Delta.Changed)
		evt.Moved = len(obs.Delta.Moved)
		evt.NoiseFiltered = obs.Delta.UnchangedSummary[statetree.NoiseBucket]
		evt.CauseHint = string(obs.CauseHint)
	}
	return evt
}
