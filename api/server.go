// Package api serves the voting service over HTTP with a JSON interface.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	chiprometheus "github.com/766b/chi-prometheus"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"voting-ledger/log"
	"voting-ledger/service"
)

// MetricsPrefix names the HTTP metrics collected by the router.
const MetricsPrefix = "voting_ledger_http"

// the chi-prometheus middleware registers its collectors globally, so it
// can only be built once per process.
var httpMetrics = sync.OnceValue(func() func(http.Handler) http.Handler {
	return chiprometheus.NewMiddleware(MetricsPrefix)
})

type Options struct {
	AllowedOrigins []string
	// Metrics enables request metrics and the /metrics endpoint.
	Metrics bool
	// Gatherer backs /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

type API struct {
	svc    *service.VotingService
	router *chi.Mux
}

func New(svc *service.VotingService, opts Options) *API {
	a := &API{svc: svc, router: chi.NewRouter()}

	r := a.router
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  stdLogger{},
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}).Handler)

	if opts.Metrics {
		r.Use(httpMetrics())
		g := opts.Gatherer
		if g == nil {
			g = prometheus.DefaultGatherer
		}
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	}

	r.Route("/chain", func(r chi.Router) {
		r.Get("/", a.chainHandler)
		r.Get("/blocks/{index}", a.blockHandler)
		r.Get("/validate", a.validateHandler)
		r.Get("/head", a.headHandler)
	})
	r.Get("/results", a.resultsHandler)
	r.Get("/candidates", a.candidatesHandler)
	r.Post("/candidates", a.addCandidateHandler)
	r.Get("/voters", a.votersHandler)
	r.Get("/voters/{id}", a.voterHandler)
	r.Post("/voters", a.addVoterHandler)
	r.Post("/votes", a.castVoteHandler)
	r.Get("/votes/verify", a.verifyVotesHandler)
	r.Get("/session", a.sessionHandler)
	r.Post("/session/end", a.endSessionHandler)
	return a
}

func (a *API) Handler() http.Handler { return a.router }

// ListenAndServe serves until ctx is done, then shuts the server down.
func (a *API) ListenAndServe(ctx context.Context, addr string) error {
	s := &http.Server{
		Addr:              addr,
		Handler:           a.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		// votes are mined while the request is open
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Infof("router ready at http://%s", addr)
		errc <- s.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("cannot shutdown http server: %w", err)
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

type stdLogger struct{}

func (stdLogger) Print(v ...interface{}) { log.Debug(fmt.Sprint(v...)) }
