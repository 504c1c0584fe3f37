package portal

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/eb3nezer/mqtt-fan/internal/settings"
)

const (
	// Timeout is how long a portal session waits for a submission.
	Timeout = 180 * time.Second

	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// probePaths are the connectivity checks operating systems use to detect a
// captive portal. They all redirect to the form.
var probePaths = []string{
	"/generate_204",
	"/gen_204",
	"/hotspot-detect.html",
	"/library/test/success.html",
	"/ncsi.txt",
	"/connecttest.txt",
	"/redirect",
}

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Logger defines the logging interface for the portal.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Portal serves the provisioning form on a fixed listen address.
type Portal struct {
	listen  string
	timeout time.Duration
	logger  Logger
	onReady func(addr net.Addr)
}

// New creates a portal that listens on addr (e.g. ":80").
func New(addr string) *Portal {
	return &Portal{
		listen:  addr,
		timeout: Timeout,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the portal.
func (p *Portal) SetLogger(logger Logger) {
	p.logger = logger
}

// SetOnReady registers a callback invoked with the bound address once the
// portal is accepting connections.
func (p *Portal) SetOnReady(fn func(addr net.Addr)) {
	p.onReady = fn
}

// session is the state of one Serve call.
type session struct {
	accessPoint string
	token       string
	current     settings.Record

	once sync.Once
	done chan Result
}

func newSession(accessPoint string, current settings.Record) *session {
	return &session{
		accessPoint: accessPoint,
		token:       uuid.NewString(),
		current:     current,
		done:        make(chan Result, 1),
	}
}

// complete records the first result. Later calls are ignored.
func (s *session) complete(res Result) {
	s.once.Do(func() { s.done <- res })
}

// Serve runs the portal until the form is submitted or abandoned, the
// timeout passes, or ctx is cancelled. accessPoint is shown as the page
// title. current pre-fills the form and is never modified.
func (p *Portal) Serve(ctx context.Context, accessPoint string, current settings.Record) Result {
	ln, err := net.Listen("tcp", p.listen)
	if err != nil {
		p.logger.Error("portal listen failed", "listen", p.listen, "error", err)
		return Result{Outcome: Failed, Err: fmt.Errorf("%w: %s: %w", ErrListen, p.listen, err)}
	}

	s := newSession(accessPoint, current)
	server := &http.Server{
		Handler:           p.handler(s),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(ln)
	}()

	p.logger.Info("provisioning portal started", "addr", ln.Addr().String(), "access_point", accessPoint)
	if p.onReady != nil {
		p.onReady(ln.Addr())
	}

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	var res Result
	select {
	case res = <-s.done:
	case <-timer.C:
		p.logger.Info("provisioning portal timed out", "timeout", p.timeout)
		res = Result{Outcome: Aborted}
	case <-ctx.Done():
		res = Result{Outcome: Aborted}
	case err := <-serveErr:
		res = Result{Outcome: Failed, Err: fmt.Errorf("%w: %w", ErrServerStopped, err)}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		p.logger.Warn("portal shutdown error", "error", err)
	}

	p.logger.Info("provisioning portal stopped", "outcome", res.Outcome.String())
	return res
}

// handler builds the router for one session.
func (p *Portal) handler(s *session) http.Handler {
	r := chi.NewRouter()

	r.Use(p.requestIDMiddleware)
	r.Use(p.loggingMiddleware)
	r.Use(p.recoveryMiddleware)
	r.Use(p.bodySizeLimitMiddleware)

	r.Get("/", p.handleForm(s))
	r.Post("/save", p.handleSave(s))
	r.Post("/exit", p.handleExit(s))

	for _, path := range probePaths {
		r.Get(path, redirectToForm)
	}

	return r
}

func redirectToForm(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusFound)
}
