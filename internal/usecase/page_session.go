package usecase

import (
	"context"
	"sync"
	"time"

	"bizzshort/internal/domain"

	"go.uber.org/zap"
)

const (
	DefaultHideTransition = 300 * time.Millisecond
	DefaultShowSettle     = 50 * time.Millisecond

	RateLimitNotice = "You're hiding ads too quickly. Please wait a minute and try again."
)

const (
	actionHide   = "hide"
	actionUnhide = "unhide"
)

// Inline overrides applied while an ad collapses. They are cleared once a
// restored ad has settled.
var collapseStyles = map[string]string{
	"transition": "opacity 0.3s ease, height 0.3s ease, margin 0.3s ease",
	"opacity":    "0",
	"height":     "0",
	"margin":     "0",
	"overflow":   "hidden",
}

type AdTiming struct {
	HideTransition time.Duration
	ShowSettle     time.Duration
}

func (t AdTiming) withDefaults() AdTiming {
	if t.HideTransition <= 0 {
		t.HideTransition = DefaultHideTransition
	}
	if t.ShowSettle <= 0 {
		t.ShowSettle = DefaultShowSettle
	}
	return t
}

type PageSessionConfig struct {
	ID        string
	ProfileID string
	Page      Page
	Scheduler Scheduler
	Profiles  *ProfileService
	Limiter   *InteractionLimiter
	Timing    AdTiming
	Now       func() time.Time
	Logger    *zap.Logger
	Metrics   Metrics
}

type pendingTimer struct {
	timer Timer
	gen   uint64
}

// PageSession holds everything one rendered page knows about its ads: the
// profile's hidden set and preferences, the per-ad visibility state, pending
// transition timers, and the in-memory interaction limiter.
type PageSession struct {
	mu sync.Mutex

	id        string
	profileID string
	page      Page
	scheduler Scheduler
	limiter   *InteractionLimiter
	timing    AdTiming
	now       func() time.Time
	log       *zap.Logger
	metrics   Metrics

	hiddenRecord *JSONRecord[[]string]
	prefsRecord  *JSONRecord[domain.AdPreferences]

	hidden    *domain.HiddenAdSet
	prefs     domain.AdPreferences
	states    map[string]domain.AdState
	pending   map[string]pendingTimer
	gen       uint64
	startedAt time.Time
	lastSeen  time.Time
	closed    bool
}

// StartPageSession loads the durable ad state once and applies it to the
// page. Ads that were hidden before start out hidden with no animation.
func StartPageSession(ctx context.Context, cfg PageSessionConfig) *PageSession {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noopMetrics{}
	}
	if cfg.Profiles == nil {
		cfg.Profiles = NewProfileService(nil, cfg.Logger, cfg.Metrics)
	}
	now := cfg.Now()
	s := &PageSession{
		id:           cfg.ID,
		profileID:    cfg.ProfileID,
		page:         cfg.Page,
		scheduler:    cfg.Scheduler,
		limiter:      cfg.Limiter,
		timing:       cfg.Timing.withDefaults(),
		now:          cfg.Now,
		log:          cfg.Logger.With(zap.String("session_id", cfg.ID), zap.String("profile_id", cfg.ProfileID)),
		metrics:      cfg.Metrics,
		hiddenRecord: cfg.Profiles.HiddenAdsRecord(cfg.ProfileID),
		prefsRecord:  cfg.Profiles.PreferencesRecord(cfg.ProfileID),
		states:       make(map[string]domain.AdState),
		pending:      make(map[string]pendingTimer),
		startedAt:    now,
		lastSeen:     now,
	}
	s.hidden = domain.NewHiddenAdSet(s.hiddenRecord.Load(ctx)...)
	s.prefs = s.prefsRecord.Load(ctx)

	if s.page == nil {
		return s
	}
	for _, id := range s.page.IDs() {
		el, ok := s.page.Element(id)
		if !ok {
			continue
		}
		if s.hidden.Has(id) {
			applyHidden(el)
			s.states[id] = domain.AdHidden
			continue
		}
		s.states[id] = domain.AdVisible
	}
	return s
}

func (s *PageSession) ID() string {
	return s.id
}

func (s *PageSession) ProfileID() string {
	return s.profileID
}

// RequestHide runs the interaction limiter, then records the id as hidden and
// starts collapsing its element. The budget is spent even when the request
// turns out to be a no-op.
func (s *PageSession) RequestHide(ctx context.Context, adID, actorKey string) domain.AdOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	outcome := s.hide(ctx, adID, actorKey)
	s.metrics.AdInteraction(actionHide, outcome)
	return outcome
}

func (s *PageSession) hide(ctx context.Context, adID, actorKey string) domain.AdOutcome {
	s.touch()
	if !s.limiter.CanInteract(ctx, actorKey) {
		s.log.Info("ad hide rate limited", zap.String("ad_id", adID), zap.String("actor", actorOrDefault(actorKey)))
		return domain.OutcomeRateLimited
	}
	el, ok := s.element(adID)
	if !ok {
		s.log.Warn("ad element not found", zap.String("ad_id", adID), zap.String("action", actionHide))
		return domain.OutcomeMissingElement
	}
	if !s.hidden.Add(adID) {
		return domain.OutcomeNoop
	}
	if err := s.hiddenRecord.Save(ctx, s.hidden.IDs()); err != nil {
		s.log.Warn("hidden ads not persisted", zap.String("ad_id", adID), zap.Error(err))
	}

	s.cancelPending(adID)
	for property, value := range collapseStyles {
		el.SetStyle(property, value)
	}
	s.states[adID] = domain.AdHiding
	s.schedule(adID, s.timing.HideTransition, func(el Element) {
		applyHidden(el)
		s.states[adID] = domain.AdHidden
	})
	return domain.OutcomeApplied
}

// RequestUnhide puts a hidden ad back into the layout. It is not rate limited.
func (s *PageSession) RequestUnhide(ctx context.Context, adID string) domain.AdOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	outcome := s.unhide(ctx, adID)
	s.metrics.AdInteraction(actionUnhide, outcome)
	return outcome
}

func (s *PageSession) unhide(ctx context.Context, adID string) domain.AdOutcome {
	s.touch()
	el, ok := s.element(adID)
	if !ok {
		s.log.Warn("ad element not found", zap.String("ad_id", adID), zap.String("action", actionUnhide))
		return domain.OutcomeMissingElement
	}
	if !s.hidden.Remove(adID) {
		return domain.OutcomeNoop
	}
	if err := s.hiddenRecord.Save(ctx, s.hidden.IDs()); err != nil {
		s.log.Warn("hidden ads not persisted", zap.String("ad_id", adID), zap.Error(err))
	}

	s.cancelPending(adID)
	el.ClearStyle("display", "pointer-events")
	el.RemoveAttribute("aria-hidden")
	el.SetStyle("opacity", "1")
	s.states[adID] = domain.AdShowing
	s.schedule(adID, s.timing.ShowSettle, func(el Element) {
		el.ClearStyle(styleNames(collapseStyles)...)
		s.states[adID] = domain.AdVisible
	})
	return domain.OutcomeApplied
}

// RemoveElement takes an ad slot out of the page. Transitions still pending
// for it do nothing when they fire.
func (s *PageSession) RemoveElement(adID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.cancelPending(adID)
	delete(s.states, adID)
	if s.page == nil || !s.page.Remove(adID) {
		return domain.ErrMissingElement
	}
	return nil
}

func (s *PageSession) State(adID string) (domain.AdState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[adID]
	return state, ok
}

func (s *PageSession) HiddenAdIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hidden.IDs()
}

func (s *PageSession) Preferences() domain.AdPreferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs
}

// SavePreferences replaces the session's preferences and writes the whole
// record through. The in-memory copy is updated even when the write fails.
func (s *PageSession) SavePreferences(ctx context.Context, prefs domain.AdPreferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.prefs = prefs
	return s.prefsRecord.Save(ctx, prefs)
}

func (s *PageSession) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Close stops every pending timer. The session must not be used afterwards.
func (s *PageSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for adID := range s.pending {
		s.cancelPending(adID)
	}
}

type AdSnapshot struct {
	ID         string            `json:"id"`
	State      domain.AdState    `json:"state"`
	Style      map[string]string `json:"style,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type SessionSnapshot struct {
	ID          string               `json:"id"`
	ProfileID   string               `json:"profile_id"`
	Ads         []AdSnapshot         `json:"ads"`
	HiddenAdIDs []string             `json:"hidden_ad_ids"`
	Preferences domain.AdPreferences `json:"preferences"`
	StartedAt   time.Time            `json:"started_at"`
	LastSeen    time.Time            `json:"last_seen"`
}

// Snapshot counts as activity, so a page that only polls stays alive.
func (s *PageSession) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	snap := SessionSnapshot{
		ID:          s.id,
		ProfileID:   s.profileID,
		Ads:         []AdSnapshot{},
		HiddenAdIDs: s.hidden.IDs(),
		Preferences: s.prefs,
		StartedAt:   s.startedAt,
		LastSeen:    s.lastSeen,
	}
	if s.page == nil {
		return snap
	}
	for _, id := range s.page.IDs() {
		el, ok := s.page.Element(id)
		if !ok {
			continue
		}
		state, ok := s.states[id]
		if !ok {
			state = domain.AdVisible
		}
		snap.Ads = append(snap.Ads, AdSnapshot{
			ID:         id,
			State:      state,
			Style:      el.Styles(),
			Attributes: el.Attributes(),
		})
	}
	return snap
}

func (s *PageSession) element(adID string) (Element, bool) {
	if s.page == nil {
		return nil, false
	}
	return s.page.Element(adID)
}

func (s *PageSession) touch() {
	s.lastSeen = s.now()
}

// schedule arms a transition for adID. Callers hold s.mu. The callback runs
// under s.mu and is dropped when it was cancelled, superseded, or its element
// is gone.
func (s *PageSession) schedule(adID string, delay time.Duration, apply func(Element)) {
	if s.scheduler == nil {
		if el, ok := s.element(adID); ok {
			apply(el)
		}
		return
	}
	s.gen++
	gen := s.gen
	timer := s.scheduler.AfterFunc(delay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		p, ok := s.pending[adID]
		if s.closed || !ok || p.gen != gen {
			return
		}
		delete(s.pending, adID)
		el, ok := s.element(adID)
		if !ok {
			delete(s.states, adID)
			return
		}
		apply(el)
	})
	s.pending[adID] = pendingTimer{timer: timer, gen: gen}
}

func (s *PageSession) cancelPending(adID string) {
	p, ok := s.pending[adID]
	if !ok {
		return
	}
	p.timer.Stop()
	delete(s.pending, adID)
}

func applyHidden(el Element) {
	for property, value := range collapseStyles {
		el.SetStyle(property, value)
	}
	el.SetStyle("display", "none")
	el.SetStyle("pointer-events", "none")
	el.SetAttribute("aria-hidden", "true")
}

func styleNames(styles map[string]string) []string {
	names := make([]string, 0, len(styles))
	for name := range styles {
		names = append(names, name)
	}
	return names
}

func actorOrDefault(actorKey string) string {
	if actorKey == "" {
		return domain.DefaultActorKey
	}
	return actorKey
}
