package tracking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benmeehan/rendezvous-agent/internal/models"
	"github.com/benmeehan/rendezvous-agent/internal/presentation"
	"github.com/benmeehan/rendezvous-agent/internal/utils"
	"github.com/benmeehan/rendezvous-agent/pkg/geo"
	"github.com/benmeehan/rendezvous-agent/pkg/routing"
	"github.com/benmeehan/rendezvous-agent/pkg/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// ArrivalThresholdMiles is the straight-line distance under which both parties have arrived.
	ArrivalThresholdMiles = 0.05

	// DefaultPollInterval is the cadence of both the write and the read loop.
	DefaultPollInterval = 5 * time.Second

	// DefaultRouteTimeout bounds a single routing request.
	DefaultRouteTimeout = 10 * time.Second

	defaultRouteWorkers = 2
)

// ErrSessionStopped is returned when a position arrives after the session has stopped.
var ErrSessionStopped = errors.New("tracking session is stopped")

// ActorKeys maps each actor to its document key in the location store.
type ActorKeys struct {
	Self string
	Peer string
}

// DefaultActorKeys are the document keys of the shared location collection.
var DefaultActorKeys = ActorKeys{Self: "User1", Peer: "User2"}

// Session tracks Self and Peer positions and stops both polling loops once they meet.
//
// state, self, peer and lastWritten are guarded by mu. Once state reaches
// StateStopped it never changes again, and stopCh is closed at that moment.
type Session struct {
	id           string
	store        store.LocationStore
	router       routing.Router
	sink         presentation.Sink
	logger       zerolog.Logger
	keys         ActorKeys
	pollInterval time.Duration
	routeTimeout time.Duration
	routeWorkers int
	now          func() time.Time

	mu          sync.Mutex
	state       State
	stopReason  StopReason
	self        *models.ActorPosition
	peer        *models.ActorPosition
	lastWritten *models.ActorPosition

	ctx      context.Context
	cancel   context.CancelFunc
	stopCh   chan struct{}
	done     chan struct{}
	doneOnce sync.Once
	wg       sync.WaitGroup
	pool     *utils.WorkerPool
}

// Option customizes a Session.
type Option func(*Session)

// WithPollInterval overrides the loop cadence.
func WithPollInterval(d time.Duration) Option {
	return func(s *Session) { s.pollInterval = d }
}

// WithRouteTimeout overrides the per-request routing timeout.
func WithRouteTimeout(d time.Duration) Option {
	return func(s *Session) { s.routeTimeout = d }
}

// WithRouteWorkers sets how many routing requests may run at once.
func WithRouteWorkers(n int) Option {
	return func(s *Session) { s.routeWorkers = n }
}

// WithActorKeys overrides the store document keys.
func WithActorKeys(keys ActorKeys) Option {
	return func(s *Session) { s.keys = keys }
}

// WithClock overrides the time source used for observation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// NewSession creates an Idle session. router may be nil, in which case no route
// summaries are produced.
func NewSession(locationStore store.LocationStore, router routing.Router, sink presentation.Sink,
	logger zerolog.Logger, opts ...Option) *Session {
	s := &Session{
		id:           uuid.NewString(),
		store:        locationStore,
		router:       router,
		sink:         sink,
		keys:         DefaultActorKeys,
		pollInterval: DefaultPollInterval,
		routeTimeout: DefaultRouteTimeout,
		routeWorkers: defaultRouteWorkers,
		now:          time.Now,
		state:        StateIdle,
		stopCh:       make(chan struct{}),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.routeWorkers < 1 {
		s.routeWorkers = 1
	}
	if s.pollInterval <= 0 {
		s.pollInterval = DefaultPollInterval
	}
	s.logger = logger.With().Str("session_id", s.id).Logger()
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Done is closed once both loops and all pending presentation work have finished.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// OnLocalPosition records the latest Self coordinate. The first call starts the
// write and read loops; later calls only replace the value the next write uses.
func (s *Session) OnLocalPosition(coord geo.Coordinate) error {
	if err := coord.Validate(); err != nil {
		s.logger.Warn().Err(err).Msg("Ignoring invalid local position")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateStopped {
		return ErrSessionStopped
	}

	s.self = &models.ActorPosition{
		Actor:      models.ActorSelf,
		Coordinate: coord,
		ObservedAt: s.now(),
	}

	if s.state == StateIdle {
		s.state = StateActive
		s.startLoopsLocked()
		s.logger.Info().
			Str("self_key", s.keys.Self).
			Str("peer_key", s.keys.Peer).
			Dur("interval", s.pollInterval).
			Msg("Tracking session active")
	}
	return nil
}

// Close tears the session down: it latches Stopped, cancels in-flight I/O and
// waits for the loops to exit.
func (s *Session) Close() error {
	s.mu.Lock()
	started := s.state != StateIdle
	s.stopLocked(StopReasonTeardown)
	s.mu.Unlock()

	s.cancel()
	if !started {
		s.finish()
	}
	<-s.done
	return nil
}

func (s *Session) startLoopsLocked() {
	s.pool = utils.NewWorkerPool(s.routeWorkers)

	s.wg.Add(2)
	go s.runLoop("write", s.writeOnce)
	go s.runLoop("read", s.readOnce)

	go func() {
		s.wg.Wait()
		s.pool.Shutdown()
		s.finish()
	}()
}

func (s *Session) finish() {
	s.doneOnce.Do(func() {
		s.cancel()
		close(s.done)
		s.logger.Info().Str("reason", string(s.StopReason())).Msg("Tracking session finished")
	})
}

// runLoop runs iterate every poll interval while the session is active.
// The active check at the top of each pass is the only cancellation point.
func (s *Session) runLoop(name string, iterate func()) {
	defer s.wg.Done()

	for {
		if !s.isActive() {
			s.logger.Debug().Str("loop", name).Msg("Loop exiting")
			return
		}

		iterate()

		wait := time.NewTimer(s.pollInterval)
		select {
		case <-wait.C:
		case <-s.stopCh:
			wait.Stop()
		}
	}
}

// writeOnce publishes the current Self position.
func (s *Session) writeOnce() {
	s.mu.Lock()
	if s.state != StateActive || s.self == nil {
		s.mu.Unlock()
		return
	}
	pos := *s.self
	s.mu.Unlock()

	if err := s.store.Set(s.ctx, s.keys.Self, pos.Coordinate); err != nil {
		s.logger.Error().Err(err).Str("key", s.keys.Self).Msg("Failed to write local position")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// a write finishing after the latch must not touch session state
	if s.state != StateActive {
		return
	}
	s.lastWritten = &pos
	s.logger.Debug().Str("key", s.keys.Self).Stringer("coordinate", pos.Coordinate).Msg("Local position written")
}

// readOnce fetches the Peer position, evaluates arrival and notifies the sink.
func (s *Session) readOnce() {
	if !s.isActive() {
		return
	}

	coord, err := s.store.Get(s.ctx, s.keys.Peer)
	if err != nil {
		s.logReadError(err)
		return
	}

	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return
	}

	peer := models.ActorPosition{
		Actor:      models.ActorPeer,
		Coordinate: coord,
		ObservedAt: s.now(),
	}
	s.peer = &peer

	update := models.PeerUpdate{
		SessionID:  s.id,
		Peer:       coord,
		ObservedAt: peer.ObservedAt,
	}
	if s.self != nil {
		self := s.self.Coordinate
		distance := geo.HaversineDistanceMiles(self, coord)
		update.Self = &self
		update.DistanceMiles = &distance
		update.Arrived = distance < ArrivalThresholdMiles
	}
	if update.Arrived {
		s.stopLocked(StopReasonArrived)
	}
	s.mu.Unlock()

	if update.Arrived {
		s.logger.Info().
			Float64("distance_miles", *update.DistanceMiles).
			Stringer("peer", coord).
			Msg("Peer arrived, stopping tracking loops")
	}

	s.present(update)
}

// present hands update to the sink, attaching a route summary when a routing
// worker is free. Routing never delays the read loop.
func (s *Session) present(update models.PeerUpdate) {
	if s.router == nil || update.Self == nil {
		s.sink.Notify(update)
		return
	}

	accepted := s.pool.TrySubmit(func() {
		ctx, cancel := context.WithTimeout(s.ctx, s.routeTimeout)
		defer cancel()

		summary, err := s.router.Route(ctx, *update.Self, update.Peer)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Route summary unavailable")
		} else {
			update.Route = &models.RouteSummary{
				DistanceMeters:  summary.DistanceMeters,
				DurationSeconds: summary.DurationSeconds,
			}
		}
		s.sink.Notify(update)
	})
	if !accepted {
		s.logger.Debug().Msg("Routing workers busy, notifying without route summary")
		s.sink.Notify(update)
	}
}

func (s *Session) logReadError(err error) {
	event := s.logger.Error()
	switch {
	case errors.Is(err, store.ErrDocumentNotFound):
		event = s.logger.Info()
	case errors.Is(err, store.ErrMalformedDocument):
		event = s.logger.Warn()
	case errors.Is(err, context.Canceled):
		event = s.logger.Debug()
	}
	event.Err(err).Str("key", s.keys.Peer).Msg("Peer position not updated")
}

// stopLocked latches the session into StateStopped. Callers hold mu.
func (s *Session) stopLocked(reason StopReason) {
	if s.state == StateStopped {
		return
	}
	s.state = StateStopped
	s.stopReason = reason
	close(s.stopCh)
}

func (s *Session) isActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateActive
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// StopReason returns why the session stopped, or "" while it runs.
func (s *Session) StopReason() StopReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopReason
}

// SelfPosition returns the latest local position.
func (s *Session) SelfPosition() (models.ActorPosition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deref(s.self)
}

// PeerPosition returns the latest well-formed peer position.
func (s *Session) PeerPosition() (models.ActorPosition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deref(s.peer)
}

// LastWritten returns the last local position the store acknowledged.
func (s *Session) LastWritten() (models.ActorPosition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deref(s.lastWritten)
}

// Status returns a snapshot for status reporting.
func (s *Session) Status() models.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := models.SessionStatus{
		SessionID:  s.id,
		Timestamp:  s.now(),
		State:      s.state.String(),
		StopReason: string(s.stopReason),
	}
	if s.self != nil {
		self := *s.self
		status.Self = &self
	}
	if s.peer != nil {
		peer := *s.peer
		status.Peer = &peer
	}
	if s.self != nil && s.peer != nil {
		d := geo.HaversineDistanceMiles(s.self.Coordinate, s.peer.Coordinate)
		status.DistanceMiles = &d
	}
	return status
}

func (s *Session) String() string {
	return fmt.Sprintf("session %s (%s)", s.id, s.State())
}

func deref(p *models.ActorPosition) (models.ActorPosition, bool) {
	if p == nil {
		return models.ActorPosition{}, false
	}
	return *p, true
}
