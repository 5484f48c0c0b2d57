package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/benmeehan/rendezvous-agent/internal/service_registry"
	"github.com/benmeehan/rendezvous-agent/internal/tracking"
	"github.com/benmeehan/rendezvous-agent/internal/utils"
	"github.com/benmeehan/rendezvous-agent/pkg/file"
	"github.com/benmeehan/rendezvous-agent/pkg/geo"
	"github.com/benmeehan/rendezvous-agent/pkg/mqtt"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "rendezvous-agent",
		Short:         "Track two parties until they meet",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCommand(), newDistanceCommand())
	return root
}

func newRunCommand() *cobra.Command {
	var configPath string
	var pretty bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the tracking agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd.Context(), configPath, pretty)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "path to the configuration file")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "human readable log output")
	return cmd
}

func newDistanceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "distance LAT,LON LAT,LON",
		Short: "Print the great-circle distance between two coordinates",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := parseCoordinate(args[0])
			if err != nil {
				return err
			}
			b, err := parseCoordinate(args[1])
			if err != nil {
				return err
			}
			miles := geo.HaversineDistanceMiles(a, b)
			fmt.Fprintf(cmd.OutOrStdout(), "%.4f mi (%.1f m) arrived=%t\n",
				miles, geo.HaversineDistanceMeters(a, b), miles < tracking.ArrivalThresholdMiles)
			return nil
		},
	}
}

// parseCoordinate parses "lat,lon".
func parseCoordinate(s string) (geo.Coordinate, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return geo.Coordinate{}, fmt.Errorf("coordinate %q must be LAT,LON", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("invalid latitude in %q: %w", s, err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("invalid longitude in %q: %w", s, err)
	}
	coord := geo.Coordinate{Latitude: lat, Longitude: lon}
	if err := coord.Validate(); err != nil {
		return geo.Coordinate{}, err
	}
	return coord, nil
}

func runAgent(ctx context.Context, configPath string, pretty bool) error {
	fileClient := file.NewFileService()

	config, err := utils.LoadConfig(configPath, fileClient)
	if err != nil {
		return err
	}

	log, err := newLogger(config.Log.Level, pretty || config.Log.Pretty)
	if err != nil {
		return err
	}

	var mqttClient mqtt.MQTTClient
	if config.UsesMQTT() {
		// Generate a unique MQTT Client ID by appending a UUID
		clientID := config.MQTT.ClientID + "-" + uuid.New().String()
		log.Info().Str("client_id", clientID).Msg("Using MQTT Client ID")

		mqttService := mqtt.NewMqttService(fileClient)
		err = mqttService.Initialize(mqtt.Options{
			Broker:     config.MQTT.Broker,
			ClientID:   clientID,
			Username:   config.MQTT.Username,
			Password:   config.MQTT.Password,
			CACertPath: config.MQTT.CACertificate,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize MQTT connection: %w", err)
		}
		defer mqttService.Disconnect(250)
		mqttClient = mqttService
	}

	var redisClient *redis.Client
	if config.Store.Backend == "redis" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     config.Store.Redis.Addr,
			Password: config.Store.Redis.Password,
			DB:       config.Store.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to reach redis at %s: %w", config.Store.Redis.Addr, err)
		}
	}

	// A nil *redis.Client must not become a non-nil interface.
	var cmdable redis.Cmdable
	if redisClient != nil {
		cmdable = redisClient
	}

	serviceRegistry := service_registry.NewServiceRegistry(mqttClient, cmdable, log)
	if err := serviceRegistry.RegisterServices(config); err != nil {
		return err
	}
	if err := serviceRegistry.StartServices(); err != nil {
		return err
	}
	log.Info().Msg("All services started successfully")

	// Handle graceful shutdown
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stopCh)

	select {
	case sig := <-stopCh:
		log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")
	case <-serviceRegistry.Session().Done():
		log.Info().Str("reason", string(serviceRegistry.Session().StopReason())).Msg("Tracking finished, shutting down")
	case err := <-serviceRegistry.Failed():
		log.Error().Err(err).Msg("Tracking failed, shutting down")
		return errors.Join(err, serviceRegistry.StopServices())
	}

	return serviceRegistry.StopServices()
}
