package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"

	"github.com/Kush-Singh-26/coiserve/internal/config"
)

// ErrBind reports that the listener could not be opened. It is never retried.
var ErrBind = errors.New("failed to bind listener")

// ErrAlreadyRun is returned when Run is called more than once on a Server.
var ErrAlreadyRun = errors.New("server already run")

// State is the server lifecycle: Starting -> Serving -> Stopped.
type State int32

const (
	Starting State = iota
	Serving
	Stopped
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Serving:
		return "serving"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Server serves one directory tree with cross-origin isolation headers.
type Server struct {
	cfg    *config.Config
	fs     afero.Fs
	mimes  MIMETable
	logger *slog.Logger
	out    io.Writer

	state   atomic.Int32
	started atomic.Bool
	ready   chan struct{}
	addr    string
}

// New serves cfg.Root from disk. Paths are confined to the root by afero.BasePathFs.
func New(cfg *config.Config, logger *slog.Logger, out io.Writer) *Server {
	return NewWithFS(cfg, afero.NewBasePathFs(afero.NewOsFs(), cfg.Root), logger, out)
}

// NewWithFS serves fsys instead of cfg.Root.
func NewWithFS(cfg *config.Config, fsys afero.Fs, logger *slog.Logger, out io.Writer) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if out == nil {
		out = io.Discard
	}
	return &Server{
		cfg:    cfg,
		fs:     fsys,
		mimes:  DefaultMIMETable(),
		logger: logger,
		out:    out,
		ready:  make(chan struct{}),
	}
}

// State reports where the server is in its lifecycle.
func (s *Server) State() State {
	return State(s.state.Load())
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr is the bound listener address. Only valid after Ready is closed.
func (s *Server) Addr() string {
	return s.addr
}

// Handler builds the request pipeline. Isolation headers sit outermost so
// they also land on responses written by the panic and error paths.
func (s *Server) Handler() (http.Handler, error) {
	var h http.Handler = newFileHandler(s.fs, s.mimes, s.cfg.ListDirectories, s.logger)

	if s.cfg.Compress {
		gz, err := compressResponses(h)
		if err != nil {
			return nil, err
		}
		h = gz
	}
	if s.cfg.LogRequests {
		h = logRequests(s.logger, h)
	}
	h = recoverPanics(s.logger, h)
	return Finalize(h, IsolationHeaders), nil
}

// Run binds the listener and serves until ctx is cancelled, then shuts down
// gracefully and returns nil. Bind failures return an error wrapping ErrBind
// and leave the state at Starting. A Server runs at most once.
func (s *Server) Run(ctx context.Context) error {
	if s.started.Swap(true) {
		return ErrAlreadyRun
	}

	handler, err := s.Handler()
	if err != nil {
		return err
	}

	addr := s.cfg.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%w on %s: %w", ErrBind, addr, err)
	}

	s.addr = ln.Addr().String()
	s.state.Store(int32(Serving))
	close(s.ready)

	port := s.cfg.Port
	if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
		port = tcpAddr.Port
	}
	url := config.BrowseURL(port)
	_, _ = fmt.Fprintf(s.out, "🌍 Serving at %s\n", url)
	_, _ = fmt.Fprintf(s.out, "   Open %s in your browser\n", url)
	_, _ = fmt.Fprintln(s.out, "   Press Ctrl+C to stop the server")
	s.logger.Debug("Serving root", "root", s.cfg.Root, "addr", s.addr)

	httpServer := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		s.state.Store(int32(Stopped))
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("HTTP server shutdown error", "error", err)
		_ = httpServer.Close()
	}
	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Warn("HTTP server exited with error", "error", err)
	}

	s.state.Store(int32(Stopped))
	_, _ = fmt.Fprintln(s.out, "\n✅ Server stopped.")
	return nil
}
