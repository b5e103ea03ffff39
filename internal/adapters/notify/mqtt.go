package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	port "myrhythm/internal/ports/notify"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type MQTTConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
}

// Publisher publica un payload en un topic.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// MQTTClient envuelve mqtt.Client esperando cada token.
type MQTTClient struct {
	client mqtt.Client
}

func NewMQTTClient(cfg MQTTConfig) (*MQTTClient, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return &MQTTClient{client: client}, nil
}

func (c *MQTTClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := c.client.Publish(topic, qos, retained, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, token.Error())
	}
	return nil
}

func (c *MQTTClient) Disconnect() {
	c.client.Disconnect(250)
}

// MQTTNotifier publica la alarma como JSON en <prefix>/<userID>.
type MQTTNotifier struct {
	pub    Publisher
	prefix string
	qos    byte
}

func NewMQTTNotifier(pub Publisher, prefix string, qos byte) *MQTTNotifier {
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = "myrhythm/alarms"
	}
	return &MQTTNotifier{pub: pub, prefix: prefix, qos: qos}
}

func (n *MQTTNotifier) Topic(userID string) string {
	return n.prefix + "/" + userID
}

func (n *MQTTNotifier) Notify(ctx context.Context, a port.Alarm) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode alarm: %w", err)
	}
	return n.pub.Publish(n.Topic(a.UserID), n.qos, false, payload)
}
