package service_registry

import (
	"errors"
	"fmt"
	"io"

	"github.com/benmeehan/rendezvous-agent/internal/metrics_collectors"
	"github.com/benmeehan/rendezvous-agent/internal/registry"
	"github.com/benmeehan/rendezvous-agent/internal/services"
	"github.com/benmeehan/rendezvous-agent/internal/tracking"
	"github.com/benmeehan/rendezvous-agent/internal/utils"
	"github.com/benmeehan/rendezvous-agent/pkg/mqtt"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ServiceRegistry manages the lifecycle of various services in the system.
type ServiceRegistry struct {
	services    map[string]registry.Service // Stores registered services
	serviceKeys []string                    // Maintains order of service registration
	mqttClient  mqtt.MQTTClient
	redisClient redis.Cmdable
	closers     []io.Closer
	session     *tracking.Session
	tracking    *services.TrackingService
	Logger      zerolog.Logger
}

// NewServiceRegistry initializes a new service registry with dependencies.
// mqttClient and redisClient may be nil when the configuration does not use them.
func NewServiceRegistry(mqttClient mqtt.MQTTClient, redisClient redis.Cmdable, logger zerolog.Logger) *ServiceRegistry {
	return &ServiceRegistry{
		services:    make(map[string]registry.Service),
		mqttClient:  mqttClient,
		redisClient: redisClient,
		Logger:      logger,
	}
}

// RegisterService adds a new service to the registry.
func (sr *ServiceRegistry) RegisterService(name string, svc registry.Service) {
	if _, exists := sr.services[name]; exists {
		sr.Logger.Warn().Msgf("Service %s is already registered", name)
		return
	}
	sr.services[name] = svc
	sr.serviceKeys = append(sr.serviceKeys, name)
	sr.Logger.Info().Msgf("Registered service: %s", name)
}

// Session returns the tracking session built by RegisterServices.
func (sr *ServiceRegistry) Session() *tracking.Session {
	return sr.session
}

// Failed delivers a fatal tracking error, such as a location feed that could
// not be opened. It blocks forever before RegisterServices.
func (sr *ServiceRegistry) Failed() <-chan error {
	if sr.tracking == nil {
		return nil
	}
	return sr.tracking.Failed()
}

// StartServices initiates all registered services in order.
// If a service fails to start, it stops already started services.
func (sr *ServiceRegistry) StartServices() error {
	startedServices := []string{}

	for _, name := range sr.serviceKeys {
		svc := sr.services[name]
		sr.Logger.Info().Msgf("Starting service: %s", name)
		if err := svc.Start(); err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to start service: %s", name)

			// Stop already started services before returning
			sr.Logger.Warn().Msg("Stopping already started services due to startup failure...")
			for i := len(startedServices) - 1; i >= 0; i-- {
				_ = sr.services[startedServices[i]].Stop()
			}
			return fmt.Errorf("failed to start %s: %w", name, err)
		}
		startedServices = append(startedServices, name)
	}

	return nil
}

// StopServices stops all services in reverse order, then releases the
// components they shared.
func (sr *ServiceRegistry) StopServices() error {
	var stopErrors []error
	for i := len(sr.serviceKeys) - 1; i >= 0; i-- {
		name := sr.serviceKeys[i]
		if err := sr.services[name].Stop(); err != nil {
			stopErrors = append(stopErrors, fmt.Errorf("failed to stop %s: %w", name, err))
		}
	}
	for _, c := range sr.closers {
		if err := c.Close(); err != nil {
			stopErrors = append(stopErrors, err)
		}
	}
	sr.closers = nil

	if len(stopErrors) > 0 {
		for _, e := range stopErrors {
			sr.Logger.Error().Err(e).Msg("Service stop failure")
		}
		return errors.Join(stopErrors...)
	}
	return nil
}

// RegisterServices builds the tracking session from configuration and
// registers the services driving it.
func (sr *ServiceRegistry) RegisterServices(config *utils.Config) error {
	locationStore, err := sr.buildStore(config)
	if err != nil {
		return fmt.Errorf("failed to create location store: %w", err)
	}
	router, err := sr.buildRouter(config)
	if err != nil {
		return fmt.Errorf("failed to create router: %w", err)
	}
	feed, err := sr.buildFeed(config)
	if err != nil {
		return fmt.Errorf("failed to create location feed: %w", err)
	}
	sink, hub := sr.buildSink(config)

	sr.session = tracking.NewSession(locationStore, router, sink, sr.Logger,
		tracking.WithPollInterval(config.Tracking.PollInterval),
		tracking.WithRouteTimeout(config.Routing.Timeout),
		tracking.WithRouteWorkers(config.Routing.Workers),
		tracking.WithActorKeys(tracking.ActorKeys{Self: config.Store.SelfKey, Peer: config.Store.PeerKey}),
	)

	// Ordered service definitions with inline constructors
	servicesInOrder := []struct {
		name        string
		enabled     bool
		constructor func() (registry.Service, error)
	}{
		{
			name:    "presentation",
			enabled: hub != nil,
			constructor: func() (registry.Service, error) {
				return services.NewPresentationService(
					config.Presentation.Websocket.Addr,
					config.Presentation.Websocket.Path,
					hub,
					sr.Logger,
				), nil
			},
		},
		{
			name:    "status",
			enabled: config.Services.Status.Enabled,
			constructor: func() (registry.Service, error) {
				if sr.mqttClient == nil {
					return nil, errors.New("status service requires an MQTT connection")
				}
				statusService := services.NewStatusService(
					config.Services.Status.Topic,
					config.Services.Status.Interval,
					config.Services.Status.QOS,
					sr.session,
					sr.mqttClient,
					sr.Logger,
				)
				if config.Services.Status.HostMetrics {
					statusService.Metrics = metrics_collectors.NewDefaultMetricsRegistry(sr.Logger)
				}
				return statusService, nil
			},
		},
		{
			name:    "tracking",
			enabled: true,
			constructor: func() (registry.Service, error) {
				sr.tracking = services.NewTrackingService(feed, sr.session, sr.Logger)
				return sr.tracking, nil
			},
		},
	}

	// Register services in the predefined order
	registeredServices := []string{}
	for _, svc := range servicesInOrder {
		if svc.enabled {
			serviceInstance, err := svc.constructor()
			if err != nil {
				sr.Logger.Error().Err(err).Msgf("Failed to create %s service", svc.name)
				return err
			}
			sr.RegisterService(svc.name, serviceInstance)
			registeredServices = append(registeredServices, svc.name)
		}
	}

	sr.Logger.Info().Msgf("Registered services in order: %v", registeredServices)
	return nil
}
