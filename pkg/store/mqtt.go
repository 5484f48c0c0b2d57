package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/benmeehan/rendezvous-agent/pkg/geo"
	"github.com/benmeehan/rendezvous-agent/pkg/mqtt"
	mqttLib "github.com/eclipse/paho.mqtt.golang"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"
)

const closeTimeout = 5 * time.Second

// MQTTStore keeps each location document as a retained JSON message.
// Reads are served from the latest retained message seen on the document topic.
type MQTTStore struct {
	client     mqtt.MQTTClient
	prefix     string
	collection string
	qos        byte
	logger     zerolog.Logger

	documents  cmap.ConcurrentMap[string, []byte]
	subscribed cmap.ConcurrentMap[string, struct{}]
}

// NewMQTTStore creates a store publishing under <prefix>/<collection>/<key>.
func NewMQTTStore(client mqtt.MQTTClient, prefix, collection string, qos int, logger zerolog.Logger) *MQTTStore {
	if collection == "" {
		collection = DefaultCollection
	}
	return &MQTTStore{
		client:     client,
		prefix:     prefix,
		collection: collection,
		qos:        byte(qos),
		logger:     logger,
		documents:  cmap.New[[]byte](),
		subscribed: cmap.New[struct{}](),
	}
}

// Get returns the coordinate from the latest retained document for key.
func (m *MQTTStore) Get(ctx context.Context, key string) (geo.Coordinate, error) {
	topic := m.topic(key)
	if err := m.ensureSubscribed(ctx, topic); err != nil {
		return geo.Coordinate{}, err
	}

	payload, ok := m.documents.Get(topic)
	if !ok {
		return geo.Coordinate{}, ErrDocumentNotFound
	}

	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return geo.Coordinate{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	return DecodeDocument(doc)
}

// Set publishes the coordinate as the retained document for key.
func (m *MQTTStore) Set(ctx context.Context, key string, coord geo.Coordinate) error {
	payload, err := json.Marshal(EncodeDocument(coord))
	if err != nil {
		return fmt.Errorf("failed to serialize location document: %w", err)
	}

	token := m.client.Publish(m.topic(key), m.qos, true, payload)
	if err := mqtt.WaitToken(ctx, token); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", key, err)
	}
	return nil
}

// Close drops all document subscriptions.
func (m *MQTTStore) Close() error {
	topics := m.subscribed.Keys()
	if len(topics) == 0 {
		return nil
	}
	m.subscribed.Clear()
	token := m.client.Unsubscribe(topics...)
	token.WaitTimeout(closeTimeout)
	return token.Error()
}

func (m *MQTTStore) ensureSubscribed(ctx context.Context, topic string) error {
	if !m.subscribed.SetIfAbsent(topic, struct{}{}) {
		return nil
	}

	token := m.client.Subscribe(topic, m.qos, func(_ mqttLib.Client, msg mqttLib.Message) {
		m.onDocument(msg)
	})
	if err := mqtt.WaitToken(ctx, token); err != nil {
		m.subscribed.Remove(topic)
		return fmt.Errorf("mqtt subscribe %s: %w", topic, err)
	}

	m.logger.Debug().Str("topic", topic).Msg("Subscribed to location document")
	return nil
}

func (m *MQTTStore) onDocument(msg mqttLib.Message) {
	// an empty retained payload clears the document
	if len(msg.Payload()) == 0 {
		m.documents.Remove(msg.Topic())
		return
	}
	m.documents.Set(msg.Topic(), msg.Payload())
}

func (m *MQTTStore) topic(key string) string {
	if m.prefix == "" {
		return documentPath(m.collection, key)
	}
	return m.prefix + "/" + documentPath(m.collection, key)
}
