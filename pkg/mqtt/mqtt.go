package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"

	"github.com/benmeehan/rendezvous-agent/pkg/file"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTClient defines the interface for an MQTT client.
type MQTTClient interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
	Disconnect(quiesce uint)
}

// Options holds the broker connection settings.
type Options struct {
	Broker     string
	ClientID   string
	Username   string
	Password   string
	CACertPath string
}

// MqttService provides methods for MQTT operations.
type MqttService struct {
	client     MQTTClient
	fileClient file.FileOperations
}

// NewMqttService creates a new MqttService instance.
func NewMqttService(fileClient file.FileOperations) *MqttService {
	return &MqttService{
		fileClient: fileClient,
	}
}

// Initialize sets up the MQTT client and starts the connection.
// TLS is enabled when a CA certificate path is configured.
func (s *MqttService) Initialize(opts Options) error {
	clientOpts := mqtt.NewClientOptions()
	clientOpts.AddBroker(opts.Broker)
	clientOpts.SetClientID(opts.ClientID)
	clientOpts.SetAutoReconnect(true)
	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
		clientOpts.SetPassword(opts.Password)
	}

	if opts.CACertPath != "" {
		caCert, err := s.fileClient.ReadFileRaw(opts.CACertPath)
		if err != nil {
			return fmt.Errorf("failed to read CA certificate: %w", err)
		}

		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return fmt.Errorf("failed to append CA certificate")
		}
		clientOpts.SetTLSConfig(&tls.Config{RootCAs: caCertPool})
	}

	s.client = mqtt.NewClient(clientOpts)

	token := s.Connect()
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}

	return nil
}

// Connect connects to the MQTT broker.
func (s *MqttService) Connect() mqtt.Token {
	return s.client.Connect()
}

// Publish sends a message to the specified topic.
func (s *MqttService) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	return s.client.Publish(topic, qos, retained, payload)
}

// Subscribe subscribes to the specified topic with a message handler.
func (s *MqttService) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	return s.client.Subscribe(topic, qos, callback)
}

// Unsubscribe unsubscribes from the specified topics.
func (s *MqttService) Unsubscribe(topics ...string) mqtt.Token {
	return s.client.Unsubscribe(topics...)
}

// Disconnect gracefully disconnects the MQTT client.
func (s *MqttService) Disconnect(quiesce uint) {
	s.client.Disconnect(quiesce)
}

// WaitToken blocks until the token completes or ctx is done.
func WaitToken(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
