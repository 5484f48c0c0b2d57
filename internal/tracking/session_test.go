package tracking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benmeehan/rendezvous-agent/internal/mocks"
	"github.com/benmeehan/rendezvous-agent/internal/models"
	"github.com/benmeehan/rendezvous-agent/pkg/geo"
	"github.com/benmeehan/rendezvous-agent/pkg/routing"
	"github.com/benmeehan/rendezvous-agent/pkg/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testInterval = 5 * time.Millisecond

var (
	selfCoord = geo.Coordinate{Latitude: 37.0, Longitude: -122.0}
	farPeer   = geo.Coordinate{Latitude: 37.1, Longitude: -122.1}
	nearPeer  = geo.Coordinate{Latitude: 37.0003, Longitude: -122.0}
)

type readResult struct {
	coord geo.Coordinate
	err   error
}

// scriptedStore replays read results in order and repeats the last one.
type scriptedStore struct {
	mu        sync.Mutex
	reads     []readResult
	writeErrs []error
	getCalls  int
	setCalls  int
	written   []geo.Coordinate
}

func (s *scriptedStore) Get(_ context.Context, key string) (geo.Coordinate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.getCalls
	s.getCalls++
	if len(s.reads) == 0 {
		return geo.Coordinate{}, store.ErrDocumentNotFound
	}
	if i >= len(s.reads) {
		i = len(s.reads) - 1
	}
	return s.reads[i].coord, s.reads[i].err
}

func (s *scriptedStore) Set(_ context.Context, key string, coord geo.Coordinate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.setCalls
	s.setCalls++
	if i < len(s.writeErrs) && s.writeErrs[i] != nil {
		return s.writeErrs[i]
	}
	s.written = append(s.written, coord)
	return nil
}

func (s *scriptedStore) counts() (gets, sets int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getCalls, s.setCalls
}

// recordingSink collects every update it receives.
type recordingSink struct {
	mu      sync.Mutex
	updates []models.PeerUpdate
}

func (r *recordingSink) Notify(update models.PeerUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, update)
}

func (r *recordingSink) all() []models.PeerUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.PeerUpdate(nil), r.updates...)
}

func newTestSession(t *testing.T, st store.LocationStore, router routing.Router, sink *recordingSink, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{WithPollInterval(testInterval)}, opts...)
	s := NewSession(st, router, sink, zerolog.Nop(), opts...)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("session did not finish, state %s", s.State())
	}
}

func TestSession_IdleUntilFirstLocalPosition(t *testing.T) {
	st := &scriptedStore{}
	s := newTestSession(t, st, nil, &recordingSink{})

	assert.Equal(t, StateIdle, s.State())
	time.Sleep(3 * testInterval)
	gets, sets := st.counts()
	assert.Zero(t, gets)
	assert.Zero(t, sets)

	require.NoError(t, s.OnLocalPosition(selfCoord))
	assert.Equal(t, StateActive, s.State())

	pos, ok := s.SelfPosition()
	require.True(t, ok)
	assert.Equal(t, models.ActorSelf, pos.Actor)
	assert.Equal(t, selfCoord, pos.Coordinate)
}

func TestSession_RejectsInvalidLocalPosition(t *testing.T) {
	s := newTestSession(t, &scriptedStore{}, nil, &recordingSink{})

	err := s.OnLocalPosition(geo.Coordinate{Latitude: 120, Longitude: 0})
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinate)
	assert.Equal(t, StateIdle, s.State())
}

func TestSession_LaterPositionsFeedNextWrite(t *testing.T) {
	st := &scriptedStore{reads: []readResult{{coord: farPeer}}}
	s := newTestSession(t, st, nil, &recordingSink{})

	require.NoError(t, s.OnLocalPosition(selfCoord))
	moved := geo.Coordinate{Latitude: 37.01, Longitude: -122.01}
	require.NoError(t, s.OnLocalPosition(moved))

	assert.Eventually(t, func() bool {
		pos, ok := s.LastWritten()
		return ok && pos.Coordinate == moved
	}, time.Second, testInterval)
	assert.Equal(t, StateActive, s.State())
}

func TestSession_StopsWithinOneReadOfArrival(t *testing.T) {
	st := &scriptedStore{reads: []readResult{
		{coord: farPeer},
		{err: errors.New("network down")},
		{coord: farPeer},
		{coord: nearPeer},
		{coord: farPeer},
	}}
	sink := &recordingSink{}
	s := newTestSession(t, st, nil, sink)

	require.NoError(t, s.OnLocalPosition(selfCoord))
	waitDone(t, s)

	assert.Equal(t, StateStopped, s.State())
	assert.Equal(t, StopReasonArrived, s.StopReason())

	gets, sets := st.counts()
	assert.Equal(t, 4, gets, "no read after the arriving sample")

	peer, ok := s.PeerPosition()
	require.True(t, ok)
	assert.Equal(t, nearPeer, peer.Coordinate)

	// no store traffic once finished
	time.Sleep(5 * testInterval)
	gets2, sets2 := st.counts()
	assert.Equal(t, gets, gets2)
	assert.Equal(t, sets, sets2)

	assert.ErrorIs(t, s.OnLocalPosition(selfCoord), ErrSessionStopped)
	assert.Equal(t, StateStopped, s.State())
}

func TestSession_KeepsPollingWhilePeerIsFar(t *testing.T) {
	st := &scriptedStore{reads: []readResult{{coord: farPeer}}}
	s := newTestSession(t, st, nil, &recordingSink{})

	require.NoError(t, s.OnLocalPosition(selfCoord))

	assert.Eventually(t, func() bool {
		gets, sets := st.counts()
		return gets >= 10 && sets >= 10
	}, 2*time.Second, testInterval)
	assert.Equal(t, StateActive, s.State())

	require.NoError(t, s.Close())
	assert.Equal(t, StopReasonTeardown, s.StopReason())
}

func TestSession_WriteFailuresDoNotStopLoop(t *testing.T) {
	storeErr := errors.New("write refused")
	st := &scriptedStore{
		reads:     []readResult{{coord: farPeer}},
		writeErrs: []error{storeErr, storeErr, storeErr},
	}
	s := newTestSession(t, st, nil, &recordingSink{})

	require.NoError(t, s.OnLocalPosition(selfCoord))

	assert.Eventually(t, func() bool {
		_, sets := st.counts()
		return sets >= 4
	}, time.Second, testInterval)
	assert.Eventually(t, func() bool {
		_, ok := s.LastWritten()
		return ok
	}, time.Second, testInterval)
	assert.Equal(t, StateActive, s.State())
}

func TestSession_MalformedReadLeavesPeerUnchanged(t *testing.T) {
	mem := store.NewMemoryStore("")
	require.NoError(t, mem.Set(context.Background(), "User2", farPeer))
	s := newTestSession(t, mem, nil, &recordingSink{})

	require.NoError(t, s.OnLocalPosition(selfCoord))
	assert.Eventually(t, func() bool {
		_, ok := s.PeerPosition()
		return ok
	}, time.Second, testInterval)

	mem.PutDocument("User2", map[string]any{"latitude": "thirty-seven", "longitude": -122.0})
	time.Sleep(5 * testInterval)

	peer, ok := s.PeerPosition()
	require.True(t, ok)
	assert.Equal(t, farPeer, peer.Coordinate)
	assert.Equal(t, StateActive, s.State())
}

func TestSession_MissingPeerDocumentKeepsRunning(t *testing.T) {
	st := &scriptedStore{}
	s := newTestSession(t, st, nil, &recordingSink{})

	require.NoError(t, s.OnLocalPosition(selfCoord))
	assert.Eventually(t, func() bool {
		gets, _ := st.counts()
		return gets >= 3
	}, time.Second, testInterval)

	_, ok := s.PeerPosition()
	assert.False(t, ok)
	assert.Equal(t, StateActive, s.State())
}

func TestSession_EndToEndArrivalNotifiesOnce(t *testing.T) {
	mem := store.NewMemoryStore("")
	require.NoError(t, mem.Set(context.Background(), "User2", selfCoord))
	sink := &recordingSink{}
	s := newTestSession(t, mem, nil, sink)

	require.NoError(t, s.OnLocalPosition(selfCoord))
	waitDone(t, s)

	assert.Equal(t, StateStopped, s.State())
	updates := sink.all()
	require.Len(t, updates, 1)
	assert.Equal(t, selfCoord, updates[0].Peer)
	assert.True(t, updates[0].Arrived)
	require.NotNil(t, updates[0].DistanceMiles)
	assert.Equal(t, 0.0, *updates[0].DistanceMiles)
	assert.Nil(t, updates[0].Route)
}

func TestSession_RouteSummaryAttached(t *testing.T) {
	st := &scriptedStore{reads: []readResult{{coord: farPeer}, {coord: nearPeer}}}
	router := new(mocks.MockRouter)
	router.On("Route", mock.Anything, selfCoord, mock.Anything).
		Return(routing.Summary{DistanceMeters: 1500, DurationSeconds: 240}, nil)
	sink := &recordingSink{}
	s := newTestSession(t, st, router, sink)

	require.NoError(t, s.OnLocalPosition(selfCoord))
	waitDone(t, s)

	updates := sink.all()
	require.Len(t, updates, 2)
	for _, u := range updates {
		require.NotNil(t, u.Route)
		assert.Equal(t, 1500.0, u.Route.DistanceMeters)
		assert.Equal(t, 240.0, u.Route.DurationSeconds)
	}
	router.AssertNumberOfCalls(t, "Route", 2)
}

func TestSession_RouteFailureDoesNotAffectArrival(t *testing.T) {
	st := &scriptedStore{reads: []readResult{{coord: farPeer}, {coord: nearPeer}}}
	router := new(mocks.MockRouter)
	router.On("Route", mock.Anything, mock.Anything, mock.Anything).
		Return(routing.Summary{}, routing.ErrNoRoute)
	sink := &recordingSink{}
	s := newTestSession(t, st, router, sink)

	require.NoError(t, s.OnLocalPosition(selfCoord))
	waitDone(t, s)

	assert.Equal(t, StopReasonArrived, s.StopReason())
	updates := sink.all()
	require.Len(t, updates, 2)
	for _, u := range updates {
		assert.Nil(t, u.Route)
	}
}

func TestSession_SlowRouteDoesNotDelayArrival(t *testing.T) {
	st := &scriptedStore{reads: []readResult{{coord: nearPeer}}}
	release := make(chan struct{})
	router := new(mocks.MockRouter)
	router.On("Route", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(routing.Summary{DistanceMeters: 10, DurationSeconds: 5}, nil)
	sink := &recordingSink{}
	s := newTestSession(t, st, router, sink)

	require.NoError(t, s.OnLocalPosition(selfCoord))

	// arrival is latched while the route request is still blocked
	assert.Eventually(t, func() bool { return s.State() == StateStopped }, time.Second, testInterval)
	assert.Empty(t, sink.all())

	close(release)
	waitDone(t, s)
	updates := sink.all()
	require.Len(t, updates, 1)
	require.NotNil(t, updates[0].Route)
}

func TestSession_CloseBeforeActivation(t *testing.T) {
	st := &scriptedStore{}
	s := NewSession(st, nil, &recordingSink{}, zerolog.Nop(), WithPollInterval(testInterval))

	require.NoError(t, s.Close())
	waitDone(t, s)
	assert.Equal(t, StateStopped, s.State())
	assert.Equal(t, StopReasonTeardown, s.StopReason())
	assert.ErrorIs(t, s.OnLocalPosition(selfCoord), ErrSessionStopped)

	gets, sets := st.counts()
	assert.Zero(t, gets)
	assert.Zero(t, sets)
	// Close is idempotent
	require.NoError(t, s.Close())
}

// latchingStore stops the session while a store call is in flight.
type latchingStore struct {
	session *Session
}

func (l *latchingStore) latch() {
	l.session.mu.Lock()
	l.session.stopLocked(StopReasonArrived)
	l.session.mu.Unlock()
}

func (l *latchingStore) Get(context.Context, string) (geo.Coordinate, error) {
	l.latch()
	return farPeer, nil
}

func (l *latchingStore) Set(context.Context, string, geo.Coordinate) error {
	l.latch()
	return nil
}

func TestSession_InFlightCallsDoNotResurrectState(t *testing.T) {
	for _, name := range []string{"read", "write"} {
		t.Run(name, func(t *testing.T) {
			st := &latchingStore{}
			sink := &recordingSink{}
			s := NewSession(st, nil, sink, zerolog.Nop(), WithPollInterval(time.Hour))
			st.session = s
			s.mu.Lock()
			s.state = StateActive
			s.self = &models.ActorPosition{Actor: models.ActorSelf, Coordinate: selfCoord}
			s.mu.Unlock()

			if name == "read" {
				s.readOnce()
			} else {
				s.writeOnce()
			}

			assert.Equal(t, StateStopped, s.State())
			_, ok := s.PeerPosition()
			assert.False(t, ok)
			_, ok = s.LastWritten()
			assert.False(t, ok)
			assert.Empty(t, sink.all())
		})
	}
}

func TestSession_InterleavingOrderDoesNotMatter(t *testing.T) {
	run := func(writeFirst bool) (models.ActorPosition, models.ActorPosition) {
		st := &scriptedStore{reads: []readResult{{coord: farPeer}}}
		clock := func() time.Time { return time.Unix(1700000000, 0) }
		s := NewSession(st, nil, &recordingSink{}, zerolog.Nop(), WithClock(clock))
		s.mu.Lock()
		s.state = StateActive
		s.self = &models.ActorPosition{Actor: models.ActorSelf, Coordinate: selfCoord, ObservedAt: clock()}
		s.mu.Unlock()

		if writeFirst {
			s.writeOnce()
			s.readOnce()
		} else {
			s.readOnce()
			s.writeOnce()
		}

		self, ok := s.SelfPosition()
		require.True(t, ok)
		peer, ok := s.PeerPosition()
		require.True(t, ok)
		return self, peer
	}

	selfA, peerA := run(true)
	selfB, peerB := run(false)
	assert.Equal(t, selfA, selfB)
	assert.Equal(t, peerA, peerB)
}

func TestSession_Status(t *testing.T) {
	st := &scriptedStore{reads: []readResult{{coord: farPeer}}}
	s := newTestSession(t, st, nil, &recordingSink{})

	status := s.Status()
	assert.Equal(t, "idle", status.State)
	assert.Nil(t, status.Self)

	require.NoError(t, s.OnLocalPosition(selfCoord))
	assert.Eventually(t, func() bool {
		return s.Status().DistanceMiles != nil
	}, time.Second, testInterval)

	status = s.Status()
	assert.Equal(t, s.ID(), status.SessionID)
	assert.Equal(t, "active", status.State)
	assert.InDelta(t, geo.HaversineDistanceMiles(selfCoord, farPeer), *status.DistanceMiles, 1e-9)
}

func TestSession_UsesConfiguredActorKeys(t *testing.T) {
	st := new(mocks.MockLocationStore)
	wrote := make(chan struct{}, 1)
	read := make(chan struct{}, 1)
	signal := func(ch chan struct{}) func(mock.Arguments) {
		return func(mock.Arguments) {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}
	st.On("Set", mock.Anything, "alice", selfCoord).Run(signal(wrote)).Return(nil)
	st.On("Get", mock.Anything, "bob").Run(signal(read)).Return(farPeer, nil)

	s := newTestSession(t, st, nil, &recordingSink{}, WithActorKeys(ActorKeys{Self: "alice", Peer: "bob"}))
	require.NoError(t, s.OnLocalPosition(selfCoord))

	for _, ch := range []chan struct{}{wrote, read} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("store was not called with the configured keys")
		}
	}
	require.NoError(t, s.Close())

	st.AssertNotCalled(t, "Set", mock.Anything, DefaultActorKeys.Self, mock.Anything)
	st.AssertNotCalled(t, "Get", mock.Anything, DefaultActorKeys.Peer)
}

func TestSession_BusyRoutingWorkersDoNotQueueStaleRoutes(t *testing.T) {
	st := &scriptedStore{reads: []readResult{{coord: farPeer}, {coord: farPeer}, {coord: nearPeer}}}
	release := make(chan struct{})
	router := new(mocks.MockRouter)
	router.On("Route", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(routing.Summary{DistanceMeters: 10, DurationSeconds: 5}, nil)
	sink := &recordingSink{}
	s := newTestSession(t, st, router, sink, WithRouteWorkers(1))

	require.NoError(t, s.OnLocalPosition(selfCoord))

	// the single worker is held by the first route, later reads go out without one
	require.Eventually(t, func() bool { return len(sink.all()) == 2 }, time.Second, testInterval)
	for _, u := range sink.all() {
		assert.Nil(t, u.Route)
	}

	close(release)
	waitDone(t, s)
	assert.Len(t, sink.all(), 3)
	router.AssertNumberOfCalls(t, "Route", 1)
}

func TestSession_NonPositivePollIntervalFallsBackToDefault(t *testing.T) {
	s := NewSession(&scriptedStore{}, nil, &recordingSink{}, zerolog.Nop(), WithPollInterval(-time.Second))
	t.Cleanup(func() { _ = s.Close() })

	assert.Equal(t, DefaultPollInterval, s.pollInterval)
}
