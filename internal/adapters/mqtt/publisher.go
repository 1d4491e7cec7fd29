package mqtt

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/paho"

	"github.com/ghalamif/bearingsim/internal/ports"
)

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("mqtt: publisher closed")

// maxKeepAlive is the largest keep-alive an MQTT CONNECT can carry.
const maxKeepAlive = math.MaxUint16 * time.Second

// Config captures the broker connection and the two topics the simulator writes to.
type Config struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	ClientID       string        `yaml:"client_id"`
	InputTopic     string        `yaml:"input_topic"`
	AnomaliesTopic string        `yaml:"anomalies_topic"`
	QoS            byte          `yaml:"qos"`
	KeepAlive      time.Duration `yaml:"keep_alive"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 1883
	}
	if c.ClientID == "" {
		c.ClientID = "bb1"
	}
	if c.InputTopic == "" {
		c.InputTopic = "bb/input"
	}
	if c.AnomaliesTopic == "" {
		c.AnomaliesTopic = "bb/anomalies"
	}
	if c.KeepAlive <= 0 {
		c.KeepAlive = 30 * time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.KeepAlive > maxKeepAlive {
		return fmt.Errorf("keep_alive %s exceeds %s", c.KeepAlive, maxKeepAlive)
	}
	if c.QoS > 1 {
		return fmt.Errorf("qos %d unsupported, use 0 or 1", c.QoS)
	}
	if c.InputTopic == c.AnomaliesTopic {
		return errors.New("input and anomalies topics must differ")
	}
	return nil
}

func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Publisher is a single MQTT v5 connection used for fire-and-forget publishes.
type Publisher struct {
	cfg    Config
	obs    ports.Observability
	client *paho.Client

	mu     sync.Mutex
	closed bool
}

// Dial connects to the broker and waits for the CONNACK.
func Dial(ctx context.Context, cfg Config, obs ports.Observability) (*Publisher, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", cfg.Addr())
	if err != nil {
		return nil, fmt.Errorf("mqtt dial %s: %w", cfg.Addr(), err)
	}

	client := paho.NewClient(paho.ClientConfig{
		ClientID: cfg.ClientID,
		Conn:     conn,
		OnClientError: func(err error) {
			obs.LogError("mqtt_client_error", err, ports.Field{Key: "broker", Value: cfg.Addr()})
		},
		OnServerDisconnect: func(d *paho.Disconnect) {
			obs.LogError("mqtt_server_disconnect", fmt.Errorf("reason code %d", d.ReasonCode),
				ports.Field{Key: "broker", Value: cfg.Addr()})
		},
	})

	ack, err := client.Connect(ctx, &paho.Connect{
		ClientID:   cfg.ClientID,
		KeepAlive:  uint16(cfg.KeepAlive / time.Second),
		CleanStart: true,
	})
	if err != nil {
		_ = conn.Close()
		fields := []ports.Field{{Key: "broker", Value: cfg.Addr()}}
		if ack != nil {
			fields = append(fields, ports.Field{Key: "reason_code", Value: ack.ReasonCode})
		}
		obs.LogError("mqtt_connection_refused", err, fields...)
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Addr(), err)
	}

	obs.LogInfo("mqtt_connected",
		ports.Field{Key: "broker", Value: cfg.Addr()},
		ports.Field{Key: "client_id", Value: cfg.ClientID})

	return &Publisher{cfg: cfg, obs: obs, client: client}, nil
}

func (p *Publisher) Name() string { return "mqtt://" + p.cfg.Addr() }

func (p *Publisher) Publish(ctx context.Context, topic string, payload []byte) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrPublisherClosed
	}

	_, err := p.client.Publish(ctx, &paho.Publish{
		QoS:     p.cfg.QoS,
		Topic:   topic,
		Payload: payload,
		Properties: &paho.PublishProperties{
			ContentType: "application/json",
		},
	})
	if err != nil {
		return fmt.Errorf("mqtt publish %s: %w", topic, err)
	}
	return nil
}

// Close sends DISCONNECT; it is safe to call more than once.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.client.Disconnect(&paho.Disconnect{ReasonCode: 0})
}

var _ ports.Publisher = (*Publisher)(nil)
