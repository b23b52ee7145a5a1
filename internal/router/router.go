package router

import (
	"database/sql"
	"net/http"
	"time"

	_ "child-development-records/docs"
	mem "child-development-records/internal/adapters/storage/memory"
	pg "child-development-records/internal/adapters/storage/postgres"
	"child-development-records/internal/domain/accessgrants"
	"child-development-records/internal/domain/children"
	"child-development-records/internal/domain/journal"
	"child-development-records/internal/domain/parties"
	"child-development-records/internal/domain/relationships"
	"child-development-records/internal/middleware"
	"child-development-records/internal/platform/logger"
	"child-development-records/internal/platform/ratelimit"
	"child-development-records/internal/platform/validation"
	"child-development-records/internal/ports/auth"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

const serviceName = "child-development-records"

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)

	// Opcional: si viene, usa Postgres. Si no, in-memory.
	DB *sql.DB

	Logger logger.Logger

	// TokenLimiter limita validate/claim. nil => en memoria con DefaultTokenRule.
	TokenLimiter ratelimit.Limiter

	TokenTTLDays    int
	MaxTokenTTLDays int

	// Clock para tests; nil => time.Now.
	Clock func() time.Time
}

// DefaultTokenRule: intentos de validate/claim por usuario y minuto.
var DefaultTokenRule = ratelimit.Rule{Limit: 10, Window: time.Minute}

// App expone el handler y el servicio de grants (el sweeper lo necesita en main).
type App struct {
	Handler http.Handler
	Grants  *accessgrants.Service
}

func NewRouter(opts Options) http.Handler {
	return New(opts).Handler
}

func New(opts Options) *App {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	var (
		profileRepo parties.Repository
		relRepo     relationships.Repository
		childRepo   children.Repository
		journalRepo journal.Repository
		grantsRepo  accessgrants.Repository
	)

	if opts.DB != nil {
		profileRepo = pg.NewProfilesRepo(opts.DB)
		relRepo = pg.NewRelationshipsRepo(opts.DB)
		childRepo = pg.NewChildrenRepo(opts.DB)
		journalRepo = pg.NewJournalRepo(opts.DB)
		grantsRepo = pg.NewAccessGrantsRepo(opts.DB)
	} else {
		store := mem.NewStore()
		profileRepo = mem.NewProfileRepo(store)
		relRepo = mem.NewRelationshipRepo(store)
		childRepo = mem.NewChildRepo(store)
		journalRepo = mem.NewJournalRepo(store)
		grantsRepo = mem.NewAccessGrantRepo(store)
	}

	// Services por módulo
	partiesSvc := parties.NewService(profileRepo)
	relSvc := relationships.NewService(relRepo)
	childrenSvc := children.NewService(childRepo, relSvc)
	journalSvc := journal.NewService(journalRepo)

	grantOpts := []accessgrants.Option{
		accessgrants.WithLogger(log),
		accessgrants.WithTokenTTL(opts.TokenTTLDays, opts.MaxTokenTTLDays),
	}
	if opts.Clock != nil {
		grantOpts = append(grantOpts, accessgrants.WithClock(opts.Clock))
	}
	grantsSvc := accessgrants.NewService(grantsRepo, relSvc, childrenSvc, grantOpts...)

	limiter := opts.TokenLimiter
	if limiter == nil {
		limiter = ratelimit.NewMemory(DefaultTokenRule)
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogger(log))

	r.Use(middleware.AuthContext(opts.AuthVerifier))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/swagger/*", httpSwagger.WrapHandler)

	// Rutas por módulo
	parties.RegisterRoutes(r, partiesSvc)

	r.Route("/as/{role}", func(ar chi.Router) {
		ar.Use(parties.RequireProfile(partiesSvc))

		accessgrants.RegisterRoutes(ar, accessgrants.HandlerDeps{
			Service:    grantsSvc,
			Validator:  validation.New(),
			Log:        log,
			TokenGuard: middleware.RateLimit(limiter, "grant_tokens", log),
		})
		children.RegisterRoutes(ar, childrenSvc, grantsSvc)
		journal.RegisterRoutes(ar, journalSvc, grantsSvc)
	})

	return &App{Handler: r, Grants: grantsSvc}
}
