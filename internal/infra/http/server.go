package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"bizzshort/internal/config"
	"bizzshort/internal/domain"
	"bizzshort/internal/infra/auth/rbac"
	"bizzshort/internal/infra/clock"
	"bizzshort/internal/infra/crypto"
	"bizzshort/internal/infra/db"
	"bizzshort/internal/infra/docmem"
	"bizzshort/internal/infra/kvmem"
	"bizzshort/internal/infra/kvredis"
	"bizzshort/internal/infra/metrics"
	"bizzshort/internal/infra/pagedom"
	"bizzshort/internal/infra/policyopa"
	"bizzshort/internal/infra/ratelimit"
	"bizzshort/internal/usecase"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// PolicyEvaluator is consulted after the role check on every authenticated
// request.
type PolicyEvaluator interface {
	Evaluate(ctx context.Context, input domain.PolicyInput) (domain.PolicyEvaluation, error)
}

type Server struct {
	cfg   config.Config
	store *db.Store
	r     *gin.Engine
	log   *zap.Logger

	content  *usecase.ContentService
	sessions *usecase.SessionRegistry
	profiles *usecase.ProfileService
	audit    *usecase.AuditTrail
	metrics  *metrics.Metrics

	adminAPIKey  string
	editorAPIKey string

	authorizer  domain.Authorizer
	policy      PolicyEvaluator
	authInitErr error

	rateLimiter         domain.RateLimiter
	rateLimitRequests   int
	rateLimitWindow     time.Duration
	rateLimitFailClosed bool
}

type ServerDeps struct {
	Content      *usecase.ContentService
	Sessions     *usecase.SessionRegistry
	Profiles     *usecase.ProfileService
	Audit        *usecase.AuditTrail
	Metrics      *metrics.Metrics
	AdminAPIKey  string
	EditorAPIKey string
	Authorizer   domain.Authorizer
	Policy       PolicyEvaluator
	RateLimiter  domain.RateLimiter
	Logger       *zap.Logger
}

// NewServer builds every dependency from cfg. A store without a database
// runs the in-memory repositories.
func NewServer(cfg config.Config, store *db.Store, logger *zap.Logger) *Server {
	s := &Server{cfg: cfg, store: store, log: logger}
	s.initDeps()
	s.initEngine()
	return s
}

func NewServerWithDeps(cfg config.Config, deps ServerDeps) *Server {
	s := &Server{
		cfg:          cfg,
		log:          deps.Logger,
		content:      deps.Content,
		sessions:     deps.Sessions,
		profiles:     deps.Profiles,
		audit:        deps.Audit,
		metrics:      deps.Metrics,
		adminAPIKey:  deps.AdminAPIKey,
		editorAPIKey: deps.EditorAPIKey,
		authorizer:   deps.Authorizer,
		policy:       deps.Policy,
	}
	if s.authorizer == nil {
		s.authorizer = rbac.NewAuthorizer()
	}
	if s.profiles == nil {
		var m usecase.Metrics
		if s.metrics != nil {
			m = s.metrics
		}
		s.profiles = usecase.NewProfileService(nil, s.log, m)
	}
	s.initRateLimit(deps.RateLimiter)
	s.initEngine()
	return s
}

func (s *Server) initDeps() {
	if s.log == nil {
		s.log = zap.NewNop()
	}
	s.adminAPIKey = s.cfg.AdminAPIKey
	s.editorAPIKey = s.cfg.EditorAPIKey
	s.metrics = metrics.New()
	s.authorizer = rbac.NewAuthorizer()

	engine, err := policyopa.NewEngine(context.Background(), s.cfg.PolicyBundlePath)
	if err != nil {
		s.authInitErr = err
	} else {
		s.policy = engine
		s.log.Info("authorization policy loaded", zap.String("bundle_hash", engine.BundleHash()))
	}

	var (
		docs      usecase.DocumentRepository = docmem.New()
		auditRepo usecase.AuditRepository    = docmem.NewAuditLog()
	)
	if s.store.Enabled() {
		docs = db.NewDocumentRepository(s.store.DB)
		auditRepo = db.NewAuditEventRepository(s.store.DB)
	}

	var kv domain.KVStore
	switch s.cfg.PreferenceStore {
	case config.PreferenceStoreRedis:
		kv = kvredis.New(redis.NewClient(&redis.Options{
			Addr:     s.cfg.RedisAddr,
			Password: s.cfg.RedisPassword,
			DB:       s.cfg.RedisDB,
		}))
	case config.PreferenceStoreDB:
		if s.store.Enabled() {
			kv = db.NewProfileSettingsRepository(s.store.DB)
		} else {
			s.authInitErr = errors.New("PREFERENCE_STORE=db requires a database")
		}
	}
	if kv == nil {
		kv = kvmem.New()
	}

	s.audit = usecase.NewAuditTrail(auditRepo, nil)
	s.content = &usecase.ContentService{
		Docs:   docs,
		Hasher: crypto.NewBcryptHasher(0),
		Audit:  s.audit,
		Log:    s.log,
	}
	s.profiles = usecase.NewProfileService(kv, s.log, s.metrics)
	s.sessions = usecase.NewSessionRegistry(usecase.SessionRegistryConfig{
		Profiles:  s.profiles,
		Scheduler: clock.New(),
		NewPage: func(adIDs []string) usecase.Page {
			return pagedom.New(adIDs...)
		},
		NewLimiter: func() domain.RateLimiter {
			return ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{MaxKeys: s.cfg.RateLimitMaxKeys})
		},
		Timing: usecase.AdTiming{
			HideTransition: s.cfg.AdHideTransition(),
			ShowSettle:     s.cfg.AdShowSettle(),
		},
		MaxActions:  s.cfg.AdMaxInteractions,
		Window:      s.cfg.AdInteractionWindow(),
		MaxSessions: s.cfg.SessionMax,
		IdleTTL:     s.cfg.SessionIdleTTL(),
		Logger:      s.log,
		Metrics:     s.metrics,
	})

	s.initRateLimit(nil)
}

func (s *Server) initRateLimit(override domain.RateLimiter) {
	if override != nil {
		s.rateLimiter = override
	}
	if s.rateLimiter == nil && s.cfg.RateLimitRequests > 0 {
		if s.cfg.RedisAddr != "" {
			if limiter, err := ratelimit.NewRedisLimiter(s.cfg.RedisAddr, s.cfg.RedisPassword, s.cfg.RedisDB, nil); err == nil {
				s.rateLimiter = limiter
			}
		}
		if s.rateLimiter == nil {
			s.rateLimiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{
				MaxKeys: s.cfg.RateLimitMaxKeys,
			})
		}
	}
	s.rateLimitRequests = s.cfg.RateLimitRequests
	s.rateLimitWindow = s.cfg.RateLimitWindow()
	s.rateLimitFailClosed = s.cfg.RateLimitFailClosed
}

func (s *Server) initEngine() {
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if gin.Mode() == gin.DebugMode && !s.cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), s.requestMetrics())
	if len(s.cfg.CORSAllowedOrigins) > 0 {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowOrigins = s.cfg.CORSAllowedOrigins
		corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
		corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "X-Actor-Key", "X-Admin-Key", "X-Editor-Key"}
		corsCfg.ExposeHeaders = []string{"RateLimit-Limit", "RateLimit-Remaining", "RateLimit-Reset", "Retry-After"}
		r.Use(cors.New(corsCfg))
	}
	s.r = r
	s.routes()
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		dbMode := "no-db"
		if s.store.Enabled() {
			dbMode = "db"
		}
		out := gin.H{"status": "ok", "mode": dbMode, "preference_store": s.cfg.PreferenceStore}
		if s.sessions != nil {
			out["sessions"] = s.sessions.Len()
		}
		c.JSON(http.StatusOK, out)
	})
	if s.metrics != nil {
		s.r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	v1 := s.r.Group("/v1")
	{
		v1.POST("/sessions", s.handleStartSession)
		v1.GET("/sessions/:session_id", s.handleGetSession)
		v1.DELETE("/sessions/:session_id", s.handleEndSession)
		v1.POST("/sessions/:session_id/ads/:ad_id/hide", s.handleHideAd)
		v1.POST("/sessions/:session_id/ads/:ad_id/unhide", s.handleUnhideAd)
		v1.DELETE("/sessions/:session_id/ads/:ad_id", s.handleRemoveAd)

		v1.GET("/profiles/:profile_id/ad-preferences", s.handleGetPreferences)
		v1.PUT("/profiles/:profile_id/ad-preferences", s.handlePutPreferences)
		v1.GET("/profiles/:profile_id/hidden-ads", s.handleGetHiddenAds)

		v1.GET("/audit", s.handleListAudit)
		v1.GET("/advertisements/active", s.handleActiveAds)

		for _, collection := range domain.Collections() {
			g := v1.Group("/" + string(collection))
			g.POST("", s.handleCreateDocument(collection))
			g.GET("", s.handleListDocuments(collection))
			g.GET("/:id", s.handleGetDocument(collection))
			g.PUT("/:id", s.handleReplaceDocument(collection))
			g.DELETE("/:id", s.handleDeleteDocument(collection))
		}
	}

	s.r.NoRoute(func(c *gin.Context) {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
}

func (s *Server) Handler() http.Handler {
	return s.r
}

// Run serves until ctx is cancelled, then drains in-flight requests and
// stops every live page session.
func (s *Server) Run(ctx context.Context) error {
	if s.authInitErr != nil {
		return s.authInitErr
	}
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("addr", s.cfg.HTTPAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	if s.sessions != nil {
		s.sessions.Close()
	}
	return err
}
