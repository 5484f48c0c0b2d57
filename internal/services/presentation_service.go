package services

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const shutdownTimeout = 5 * time.Second

// PresentationService serves the live peer update stream over HTTP.
type PresentationService struct {
	addr    string
	path    string
	handler http.Handler
	logger  zerolog.Logger

	server   *http.Server
	listener net.Listener
	wg       sync.WaitGroup
}

// NewPresentationService creates a service exposing handler at path on addr.
func NewPresentationService(addr, path string, handler http.Handler, logger zerolog.Logger) *PresentationService {
	return &PresentationService{
		addr:    addr,
		path:    path,
		handler: handler,
		logger:  logger,
	}
}

// Start binds the listen address and serves in the background.
func (p *PresentationService) Start() error {
	if p.server != nil {
		p.logger.Warn().Msg("PresentationService is already running")
		return errors.New("presentation service is already running")
	}

	listener, err := net.Listen("tcp", p.addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle(p.path, p.handler)
	p.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	p.listener = listener

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error().Err(err).Msg("Presentation server failed")
		}
	}()

	p.logger.Info().Str("addr", listener.Addr().String()).Str("path", p.path).Msg("PresentationService started")
	return nil
}

// Addr returns the bound address, useful when listening on port 0.
func (p *PresentationService) Addr() string {
	if p.listener == nil {
		return ""
	}
	return p.listener.Addr().String()
}

// Stop shuts the HTTP server down.
func (p *PresentationService) Stop() error {
	if p.server == nil {
		p.logger.Warn().Msg("PresentationService is not running")
		return errors.New("presentation service is not running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := p.server.Shutdown(ctx)
	p.wg.Wait()

	// Shutdown leaves hijacked WebSocket connections open
	if closer, ok := p.handler.(io.Closer); ok {
		if cerr := closer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}

	p.server = nil
	p.listener = nil
	p.logger.Info().Msg("PresentationService stopped")
	return err
}
