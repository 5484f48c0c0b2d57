package presentation

import (
	"encoding/json"

	"github.com/benmeehan/rendezvous-agent/internal/models"
	"github.com/benmeehan/rendezvous-agent/pkg/mqtt"
	"github.com/rs/zerolog"
)

// MQTTSink publishes updates as JSON on a topic for remote map clients.
type MQTTSink struct {
	topic      string
	qos        int
	mqttClient mqtt.MQTTClient
	logger     zerolog.Logger
}

// NewMQTTSink creates a sink publishing to topic.
func NewMQTTSink(topic string, qos int, mqttClient mqtt.MQTTClient, logger zerolog.Logger) *MQTTSink {
	return &MQTTSink{
		topic:      topic,
		qos:        qos,
		mqttClient: mqttClient,
		logger:     logger,
	}
}

// Notify publishes update without waiting for broker acknowledgement.
func (m *MQTTSink) Notify(update models.PeerUpdate) {
	payload, err := json.Marshal(update)
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to serialize peer update")
		return
	}

	token := m.mqttClient.Publish(m.topic, byte(m.qos), false, payload)
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			m.logger.Error().Err(err).Str("topic", m.topic).Msg("Failed to publish peer update")
		}
	}()
}
