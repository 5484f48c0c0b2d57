package utils

import (
	"fmt"
	"time"

	"github.com/benmeehan/rendezvous-agent/pkg/file"
	"github.com/go-playground/validator/v10"
)

// Config represents the structure of the configuration file.
type Config struct {
	Log struct {
		Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error"` // Minimum log level
		Pretty bool   `yaml:"pretty"`                                                       // Human readable console output
	} `yaml:"log"`

	MQTT struct {
		Broker        string `yaml:"broker"`         // MQTT broker address
		ClientID      string `yaml:"client_id"`      // MQTT client ID
		Username      string `yaml:"username"`       // Optional broker username
		Password      string `yaml:"password"`       // Optional broker password
		CACertificate string `yaml:"ca_certificate"` // Path to the CA certificate
	} `yaml:"mqtt"`

	Store struct {
		Backend    string `yaml:"backend" validate:"required,oneof=redis mqtt memory"` // Location store backend
		Collection string `yaml:"collection"`                                          // Collection holding location documents
		SelfKey    string `yaml:"self_key" validate:"required"`                        // Document key written with the local position
		PeerKey    string `yaml:"peer_key" validate:"required,nefield=SelfKey"`        // Document key read for the peer position

		Redis struct {
			Addr     string `yaml:"addr"`     // Redis address host:port
			Password string `yaml:"password"` // Redis password
			DB       int    `yaml:"db"`       // Redis database index
		} `yaml:"redis"`

		MQTT struct {
			TopicPrefix string `yaml:"topic_prefix"`               // Prefix for document topics
			QOS         int    `yaml:"qos" validate:"gte=0,lte=2"` // MQTT QoS level for documents
		} `yaml:"mqtt"`
	} `yaml:"store"`

	Routing struct {
		Enabled    bool          `yaml:"enabled"`                         // Compute route distance and ETA
		MapsAPIKey string        `yaml:"maps_api_key"`                    // Google maps API Key
		Timeout    time.Duration `yaml:"timeout" validate:"gte=0"`        // Timeout per routing request
		Workers    int           `yaml:"workers" validate:"gte=0,lte=16"` // Concurrent routing requests
	} `yaml:"routing"`

	Feed struct {
		Source            string        `yaml:"source" validate:"required,oneof=gps google static"` // Where local positions come from
		Interval          time.Duration `yaml:"interval" validate:"gte=0"`                          // Polling interval for provider feeds
		GPSDevicePort     string        `yaml:"gps_device_port"`                                    // UNIX Port where the GPS sensor is mounted
		GPSDeviceBaudRate int           `yaml:"gps_baud_rate"`                                      // The Baud rate for GPS sensor
		ModemIndex        int           `yaml:"modem_index"`                                        // ModemManager index for cell tower lookups
		StaticLatitude    float64       `yaml:"static_latitude" validate:"gte=-90,lte=90"`          // Fixed latitude for the static source
		StaticLongitude   float64       `yaml:"static_longitude" validate:"gte=-180,lte=180"`       // Fixed longitude for the static source
	} `yaml:"feed"`

	Tracking struct {
		PollInterval time.Duration `yaml:"poll_interval" validate:"gte=0"` // Cadence of the write and read loops
	} `yaml:"tracking"`

	Presentation struct {
		Log       bool   `yaml:"log"`                        // Log every peer update
		MQTTTopic string `yaml:"mqtt_topic"`                 // Publish peer updates to this topic when set
		QOS       int    `yaml:"qos" validate:"gte=0,lte=2"` // MQTT QoS level for peer updates
		Websocket struct {
			Enabled bool   `yaml:"enabled"` // Serve peer updates over WebSocket
			Addr    string `yaml:"addr"`    // Listen address of the WebSocket server
			Path    string `yaml:"path"`    // HTTP path of the WebSocket endpoint
		} `yaml:"websocket"`
	} `yaml:"presentation"`

	Services struct {
		Status struct {
			Topic       string        `yaml:"topic"`                      // MQTT topic for status service
			Enabled     bool          `yaml:"enabled"`                    // Enable/disable status service
			Interval    time.Duration `yaml:"interval" validate:"gte=0"`  // Interval between status messages
			QOS         int           `yaml:"qos" validate:"gte=0,lte=2"` // MQTT QoS level for status messages
			HostMetrics bool          `yaml:"host_metrics"`               // Attach cpu, memory and goroutine metrics
		} `yaml:"status"`
	} `yaml:"services"`
}

// UsesMQTT reports whether any configured component needs a broker connection.
func (c *Config) UsesMQTT() bool {
	return c.Store.Backend == "mqtt" || c.Presentation.MQTTTopic != "" || c.Services.Status.Enabled
}

// applyDefaults fills zero values with the agent defaults.
func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Store.Collection == "" {
		c.Store.Collection = "location"
	}
	if c.Store.SelfKey == "" {
		c.Store.SelfKey = "User1"
	}
	if c.Store.PeerKey == "" {
		c.Store.PeerKey = "User2"
	}
	if c.Routing.Timeout == 0 {
		c.Routing.Timeout = 10 * time.Second
	}
	if c.Routing.Workers == 0 {
		c.Routing.Workers = 2
	}
	if c.Feed.Interval == 0 {
		c.Feed.Interval = 5 * time.Second
	}
	if c.Tracking.PollInterval == 0 {
		c.Tracking.PollInterval = 5 * time.Second
	}
	if c.Presentation.Websocket.Path == "" {
		c.Presentation.Websocket.Path = "/ws"
	}
	if c.Services.Status.Interval == 0 {
		c.Services.Status.Interval = 30 * time.Second
	}
}

// Validate checks field constraints and cross-field requirements.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.UsesMQTT() && c.MQTT.Broker == "" {
		return fmt.Errorf("invalid configuration: mqtt.broker is required")
	}
	if c.Store.Backend == "redis" && c.Store.Redis.Addr == "" {
		return fmt.Errorf("invalid configuration: store.redis.addr is required")
	}
	if c.Routing.Enabled && c.Routing.MapsAPIKey == "" {
		return fmt.Errorf("invalid configuration: routing.maps_api_key is required")
	}
	if c.Feed.Source == "google" && c.Routing.MapsAPIKey == "" {
		return fmt.Errorf("invalid configuration: routing.maps_api_key is required for the google feed")
	}
	if c.Feed.Source == "gps" && (c.Feed.GPSDevicePort == "" || c.Feed.GPSDeviceBaudRate <= 0) {
		return fmt.Errorf("invalid configuration: feed.gps_device_port and feed.gps_baud_rate are required")
	}
	if c.Presentation.Websocket.Enabled && c.Presentation.Websocket.Addr == "" {
		return fmt.Errorf("invalid configuration: presentation.websocket.addr is required")
	}
	if c.Services.Status.Enabled && c.Services.Status.Topic == "" {
		return fmt.Errorf("invalid configuration: services.status.topic is required")
	}
	return nil
}

// LoadConfig loads the YAML configuration from the specified file,
// applies defaults and validates it.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config
	err := fileClient.ReadYamlFile(filename, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", filename, err)
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}
