package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/benmeehan/rendezvous-agent/internal/metrics_collectors"
	"github.com/benmeehan/rendezvous-agent/internal/models"
	"github.com/benmeehan/rendezvous-agent/pkg/mqtt"
	"github.com/rs/zerolog"
)

// StatusSource supplies the snapshot published by the StatusService.
type StatusSource interface {
	Status() models.SessionStatus
}

// StatusService periodically publishes the tracking session status.
type StatusService struct {
	PubTopic   string
	Interval   time.Duration
	QOS        int
	Source     StatusSource
	MqttClient mqtt.MQTTClient
	Logger     zerolog.Logger

	// Metrics is optional; when set each status carries an agent snapshot.
	Metrics *metrics_collectors.MetricsRegistry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStatusService initializes a new StatusService.
func NewStatusService(pubTopic string, interval time.Duration, qos int, source StatusSource,
	mqttClient mqtt.MQTTClient, logger zerolog.Logger) *StatusService {

	return &StatusService{
		PubTopic:   pubTopic,
		Interval:   interval,
		QOS:        qos,
		Source:     source,
		MqttClient: mqttClient,
		Logger:     logger,
	}
}

// Start launches the status loop in a separate goroutine.
func (h *StatusService) Start() error {
	if h.ctx != nil {
		h.Logger.Warn().Msg("StatusService is already running")
		return errors.New("status service is already running")
	}

	h.ctx, h.cancel = context.WithCancel(context.Background())

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.runStatusLoop()
	}()

	h.Logger.Info().Str("topic", h.PubTopic).Msg("StatusService started successfully")
	return nil
}

// Stop gracefully stops the status service.
func (h *StatusService) Stop() error {
	if h.ctx == nil {
		h.Logger.Warn().Msg("StatusService is not running")
		return errors.New("status service is not running")
	}

	h.cancel()
	h.wg.Wait()

	h.ctx = nil
	h.cancel = nil

	h.Logger.Info().Msg("StatusService stopped successfully")
	return nil
}

// runStatusLoop publishes a status message every interval.
func (h *StatusService) runStatusLoop() {
	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.publishStatus()
		case <-h.ctx.Done():
			h.Logger.Info().Msg("StatusService stopping gracefully")
			return
		}
	}
}

func (h *StatusService) publishStatus() {
	status := h.Source.Status()
	if h.Metrics != nil {
		status.Agent = h.Metrics.Snapshot(h.ctx)
	}

	payload, err := json.Marshal(status)
	if err != nil {
		h.Logger.Error().Err(err).Msg("Failed to serialize status message")
		return
	}

	token := h.MqttClient.Publish(h.PubTopic, byte(h.QOS), false, payload)
	if err := mqtt.WaitToken(h.ctx, token); err != nil {
		h.Logger.Error().Err(err).Msg("Failed to publish status message")
		return
	}
	h.Logger.Debug().Msg("Status published successfully")
}
