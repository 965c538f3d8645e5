package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bizzshort/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultMaxSessions    = 10000
	DefaultSessionIdleTTL = 30 * time.Minute
)

type SessionRegistryConfig struct {
	Profiles    *ProfileService
	Scheduler   Scheduler
	NewPage     func(adIDs []string) Page
	NewLimiter  func() domain.RateLimiter
	Timing      AdTiming
	MaxActions  int
	Window      time.Duration
	MaxSessions int
	IdleTTL     time.Duration
	Now         func() time.Time
	NewID       func() string
	Logger      *zap.Logger
	Metrics     Metrics
}

// SelectAds picks the ad slots for a new page from the profile's preferences.
type SelectAds func(ctx context.Context, prefs domain.AdPreferences) ([]string, error)

type StartSessionInput struct {
	ProfileID string
	AdIDs     []string
	Select    SelectAds
}

// SessionRegistry owns the live page sessions. It is bounded and drops idle
// sessions lazily whenever it is accessed.
type SessionRegistry struct {
	mu       sync.Mutex
	cfg      SessionRegistryConfig
	sessions map[string]*PageSession
}

func NewSessionRegistry(cfg SessionRegistryConfig) *SessionRegistry {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noopMetrics{}
	}
	if cfg.Profiles == nil {
		cfg.Profiles = NewProfileService(nil, cfg.Logger, cfg.Metrics)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultSessionIdleTTL
	}
	return &SessionRegistry{cfg: cfg, sessions: make(map[string]*PageSession)}
}

func (r *SessionRegistry) Start(ctx context.Context, in StartSessionInput) (*PageSession, error) {
	if in.ProfileID == "" {
		return nil, &domain.ValidationError{Field: "profile_id", Reason: "is required"}
	}
	adIDs := in.AdIDs
	if len(adIDs) == 0 && in.Select != nil {
		prefs := r.cfg.Profiles.Preferences(ctx, in.ProfileID)
		selected, err := in.Select(ctx, prefs)
		if err != nil {
			return nil, fmt.Errorf("select ads: %w", err)
		}
		adIDs = selected
	}

	r.mu.Lock()
	r.sweepLocked()
	if len(r.sessions) >= r.cfg.MaxSessions {
		r.mu.Unlock()
		return nil, domain.ErrSessionCapacity
	}
	id := r.cfg.NewID()
	r.mu.Unlock()

	var page Page
	if r.cfg.NewPage != nil {
		page = r.cfg.NewPage(dedupe(adIDs))
	}
	var limiter domain.RateLimiter
	if r.cfg.NewLimiter != nil {
		limiter = r.cfg.NewLimiter()
	}
	session := StartPageSession(ctx, PageSessionConfig{
		ID:        id,
		ProfileID: in.ProfileID,
		Page:      page,
		Scheduler: r.cfg.Scheduler,
		Profiles:  r.cfg.Profiles,
		Limiter:   NewInteractionLimiter(limiter, r.cfg.MaxActions, r.cfg.Window, r.cfg.Logger),
		Timing:    r.cfg.Timing,
		Now:       r.cfg.Now,
		Logger:    r.cfg.Logger,
		Metrics:   r.cfg.Metrics,
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sessions) >= r.cfg.MaxSessions {
		session.Close()
		return nil, domain.ErrSessionCapacity
	}
	r.sessions[id] = session
	r.cfg.Metrics.SessionsActive(len(r.sessions))
	r.cfg.Logger.Debug("page session started", zap.String("session_id", id), zap.Int("ads", len(adIDs)))
	return session, nil
}

func (r *SessionRegistry) Get(id string) (*PageSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()
	session, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// End unloads a page: its timers stop and its interaction log is dropped.
func (r *SessionRegistry) End(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	delete(r.sessions, id)
	session.Close()
	r.cfg.Metrics.SessionsActive(len(r.sessions))
	return nil
}

func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close ends every session.
func (r *SessionRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, session := range r.sessions {
		session.Close()
		delete(r.sessions, id)
	}
	r.cfg.Metrics.SessionsActive(0)
}

func (r *SessionRegistry) sweepLocked() {
	cutoff := r.cfg.Now().Add(-r.cfg.IdleTTL)
	removed := 0
	for id, session := range r.sessions {
		if session.LastSeen().Before(cutoff) {
			session.Close()
			delete(r.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		r.cfg.Logger.Debug("idle page sessions expired", zap.Int("count", removed))
		r.cfg.Metrics.SessionsActive(len(r.sessions))
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
