package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"farmbook/internal/auth"
	"farmbook/internal/core"
	flog "farmbook/internal/log"
	"farmbook/internal/middleware/ratelimit"
	"farmbook/internal/middleware/security"
	"farmbook/internal/middleware/trace"
	"farmbook/internal/services"
	"farmbook/internal/storage"
)

// requestTimeout bounds every API handler.
const requestTimeout = 7 * time.Second

// Deps are the collaborators the server routes to.
type Deps struct {
	Storage  *storage.SQLiteRepository
	Ledger   *services.LedgerService
	Insights *services.InsightsService
	Seeder   *services.Seeder
	Auth     *auth.Service

	// Limiter is optional; nil keeps an in-memory limiter at 60 requests
	// per minute.
	Limiter *ratelimit.Limiter
	Logger  *slog.Logger
	// Locale drives currency formatting when a request does not pass one.
	Locale string
}

type Server struct {
	http.Server

	storage  *storage.SQLiteRepository
	ledger   *services.LedgerService
	insights *services.InsightsService
	seeder   *services.Seeder
	auth     *auth.Service

	logger          *slog.Logger
	locale          string
	startedAt       time.Time
	detector        *security.Detector
	rateLimiter     *ratelimit.Limiter
	traceMiddleware *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limiter := deps.Limiter
	if limiter == nil {
		limiter = ratelimit.NewLimiter(ratelimit.DefaultConfig(), nil)
	}
	locale := deps.Locale
	if locale == "" {
		locale = "en-KE"
	}

	s := &Server{
		storage:     deps.Storage,
		ledger:      deps.Ledger,
		insights:    deps.Insights,
		seeder:      deps.Seeder,
		auth:        deps.Auth,
		logger:      logger.With(flog.FieldComponent, flog.ComponentHTTP),
		locale:      locale,
		startedAt:   time.Now(),
		detector:    security.NewDetector(),
		rateLimiter: limiter,
	}
	s.traceMiddleware = trace.NewMiddleware(s.logger, s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	s.routes(mux)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited)(handler)
	handler = s.detector.Middleware(handler)
	handler = headers.Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("POST /api/auth/sign-up", s.handleSignUp)
	mux.HandleFunc("POST /api/auth/sign-in", s.handleSignIn)
	mux.HandleFunc("POST /api/auth/sign-out", s.handleSignOut)
	mux.HandleFunc("GET /api/me", s.withIdentity(s.handleMe))

	mux.HandleFunc("GET /api/fields", s.withIdentity(list(s, s.ledger.ListFields)))
	mux.HandleFunc("POST /api/fields", s.withIdentity(create(s, core.KindField, s.ledger.CreateField)))
	mux.HandleFunc("GET /api/fields/{id}", s.withIdentity(get(s, s.ledger.GetField)))
	mux.HandleFunc("DELETE /api/fields/{id}", s.withIdentity(remove(s, core.KindField, s.ledger.DeleteField)))

	mux.HandleFunc("GET /api/crops", s.withIdentity(list(s, s.ledger.ListCrops)))
	mux.HandleFunc("POST /api/crops", s.withIdentity(create(s, core.KindCrop, s.ledger.CreateCrop)))
	mux.HandleFunc("GET /api/crops/{id}", s.withIdentity(get(s, s.ledger.GetCrop)))
	mux.HandleFunc("DELETE /api/crops/{id}", s.withIdentity(remove(s, core.KindCrop, s.ledger.DeleteCrop)))

	mux.HandleFunc("GET /api/activities", s.withIdentity(list(s, s.ledger.ListActivities)))
	mux.HandleFunc("POST /api/activities", s.withIdentity(create(s, core.KindActivity, s.ledger.CreateActivity)))
	mux.HandleFunc("GET /api/activities/{id}", s.withIdentity(get(s, s.ledger.GetActivity)))
	mux.HandleFunc("DELETE /api/activities/{id}", s.withIdentity(remove(s, core.KindActivity, s.ledger.DeleteActivity)))

	mux.HandleFunc("GET /api/expenses", s.withIdentity(list(s, s.ledger.ListExpenses)))
	mux.HandleFunc("POST /api/expenses", s.withIdentity(create(s, core.KindExpense, s.ledger.CreateExpense)))
	mux.HandleFunc("GET /api/expenses/{id}", s.withIdentity(get(s, s.ledger.GetExpense)))
	mux.HandleFunc("DELETE /api/expenses/{id}", s.withIdentity(remove(s, core.KindExpense, s.ledger.DeleteExpense)))

	mux.HandleFunc("GET /api/harvests", s.withIdentity(list(s, s.ledger.ListHarvests)))
	mux.HandleFunc("POST /api/harvests", s.withIdentity(create(s, core.KindHarvest, s.ledger.CreateHarvest)))
	mux.HandleFunc("GET /api/harvests/{id}", s.withIdentity(get(s, s.ledger.GetHarvest)))
	mux.HandleFunc("DELETE /api/harvests/{id}", s.withIdentity(remove(s, core.KindHarvest, s.ledger.DeleteHarvest)))

	mux.HandleFunc("GET /api/sales", s.withIdentity(list(s, s.ledger.ListSales)))
	mux.HandleFunc("POST /api/sales", s.withIdentity(create(s, core.KindSale, s.ledger.CreateSale)))
	mux.HandleFunc("GET /api/sales/{id}", s.withIdentity(get(s, s.ledger.GetSale)))
	mux.HandleFunc("DELETE /api/sales/{id}", s.withIdentity(remove(s, core.KindSale, s.ledger.DeleteSale)))

	mux.HandleFunc("GET /api/stats", s.withIdentity(s.handleStats))
	mux.HandleFunc("GET /api/report", s.withIdentity(s.handleReport))
	mux.HandleFunc("GET /api/report.xlsx", s.withIdentity(s.handleReportXLSX))
	mux.HandleFunc("POST /api/seed", s.withIdentity(s.handleSeed))
}

// identityHandler is an API handler that runs with a resolved caller.
type identityHandler func(w http.ResponseWriter, r *http.Request, id core.Identity)

// withIdentity bounds the request with requestTimeout and resolves the
// session. Requests without a valid session get 401.
func (s *Server) withIdentity(next identityHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		r = r.WithContext(ctx)

		id, err := s.auth.Resolve(ctx, r.Header)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		logger := flog.FromContext(ctx).With(flog.FieldUserID, id.UserID)
		next(w, r.WithContext(flog.WithLogger(ctx, logger)), id)
	}
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		flog.FieldClientIP, s.detector.ExtractClientIP(r),
		flog.FieldMethod, r.Method,
		flog.FieldPath, r.URL.Path)
	writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
		Code:      CodeRateLimited,
		Message:   "rate limit exceeded, try again later",
		RequestID: trace.GetRequestID(r.Context()),
	})
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		err = s.Server.Shutdown(ctx)
	})
	return err
}
