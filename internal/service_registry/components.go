package service_registry

import (
	"fmt"

	"github.com/benmeehan/rendezvous-agent/internal/presentation"
	"github.com/benmeehan/rendezvous-agent/internal/utils"
	"github.com/benmeehan/rendezvous-agent/pkg/geo"
	"github.com/benmeehan/rendezvous-agent/pkg/location"
	"github.com/benmeehan/rendezvous-agent/pkg/routing"
	"github.com/benmeehan/rendezvous-agent/pkg/store"
)

func (sr *ServiceRegistry) buildStore(config *utils.Config) (store.LocationStore, error) {
	switch config.Store.Backend {
	case "redis":
		if sr.redisClient == nil {
			return nil, fmt.Errorf("redis backend selected without a redis client")
		}
		return store.NewRedisStore(sr.redisClient, config.Store.Collection), nil
	case "mqtt":
		if sr.mqttClient == nil {
			return nil, fmt.Errorf("mqtt backend selected without an MQTT connection")
		}
		s := store.NewMQTTStore(sr.mqttClient, config.Store.MQTT.TopicPrefix, config.Store.Collection,
			config.Store.MQTT.QOS, sr.Logger)
		sr.closers = append(sr.closers, s)
		return s, nil
	case "memory":
		sr.Logger.Warn().Msg("Using in-memory location store, peer positions are local only")
		return store.NewMemoryStore(config.Store.Collection), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", config.Store.Backend)
	}
}

// buildRouter returns nil when routing is disabled.
func (sr *ServiceRegistry) buildRouter(config *utils.Config) (routing.Router, error) {
	if !config.Routing.Enabled {
		sr.Logger.Debug().Msg("Routing is disabled, skipping")
		return nil, nil
	}
	return routing.NewGoogleDirectionsRouter(config.Routing.MapsAPIKey)
}

func (sr *ServiceRegistry) buildFeed(config *utils.Config) (location.Feed, error) {
	switch config.Feed.Source {
	case "gps":
		return location.NewSerialFeed(config.Feed.GPSDevicePort, config.Feed.GPSDeviceBaudRate, sr.Logger), nil
	case "google":
		provider, err := location.NewGoogleGeolocationProvider(config.Routing.MapsAPIKey, config.Feed.ModemIndex, sr.Logger)
		if err != nil {
			return nil, err
		}
		return location.NewProviderFeed(provider, config.Feed.Interval, config.Routing.Timeout, sr.Logger), nil
	case "static":
		provider := location.NewStaticProvider(geo.Coordinate{
			Latitude:  config.Feed.StaticLatitude,
			Longitude: config.Feed.StaticLongitude,
		})
		return location.NewProviderFeed(provider, config.Feed.Interval, config.Routing.Timeout, sr.Logger), nil
	default:
		return nil, fmt.Errorf("unknown feed source %q", config.Feed.Source)
	}
}

// buildSink assembles the configured sinks. The hub is returned separately
// so it can be served over HTTP, and is nil when WebSocket output is off.
func (sr *ServiceRegistry) buildSink(config *utils.Config) (presentation.Sink, *presentation.Hub) {
	var sinks presentation.MultiSink
	var hub *presentation.Hub

	if config.Presentation.Log {
		sinks = append(sinks, presentation.NewLogSink(sr.Logger))
	}
	if config.Presentation.MQTTTopic != "" && sr.mqttClient != nil {
		sinks = append(sinks, presentation.NewMQTTSink(config.Presentation.MQTTTopic, config.Presentation.QOS,
			sr.mqttClient, sr.Logger))
	}
	if config.Presentation.Websocket.Enabled {
		hub = presentation.NewHub(sr.Logger)
		sinks = append(sinks, hub)
	}
	return sinks, hub
}
