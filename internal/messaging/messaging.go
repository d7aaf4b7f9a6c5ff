// Package messaging is the edge controller's cloud link: an MQTT client
// with mutual TLS, QoS-1 publish, a last-will alarm, and a fixed reconnect
// backoff sequence so a flaky cloud connection never busy-loops the device.
package messaging

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/lifo4/edge-controller/internal/domain"
)

// Config addresses the broker and names the topics this device publishes
// to and subscribes from.
type Config struct {
	BrokerURL      string
	ClientID       string
	ClientCertFile string
	ClientKeyFile  string
	CAFile         string
	KeepAlive      time.Duration
	BackoffDelays  []time.Duration // reconnect sequence, e.g. 1,2,4,8,16,30,60s
}

// Client wraps a paho MQTT client with the reconnect/backoff and last-will
// behavior the edge controller needs.
type Client struct {
	cfg       Config
	client    mqtt.Client
	connected bool
}

// New constructs a Client and its last-will message but does not connect —
// call Connect to establish the session.
func New(cfg Config, lastWillTopic string, lastWillPayload []byte) (*Client, error) {
	tlsCfg, err := buildTLSConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("build tls config: %w", err)
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetTLSConfig(tlsCfg).
		SetKeepAlive(cfg.KeepAlive).
		SetAutoReconnect(false). // we drive reconnect ourselves with the fixed backoff sequence
		SetCleanSession(false).
		SetWill(lastWillTopic, string(lastWillPayload), 1, true)

	c := &Client{cfg: cfg}
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.connected = false
		log.Printf("[messaging] connection lost: %v", err)
	})
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		c.connected = true
		log.Printf("[messaging] connected to %s", cfg.BrokerURL)
	})

	c.client = mqtt.NewClient(opts)
	return c, nil
}

// Connect makes a single connection attempt and blocks until it succeeds or
// fails; callers that want backoff-and-retry forever should use Reconnect
// instead, in a goroutine.
func (c *Client) Connect() error {
	token := c.client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

// Reconnect retries Connect using the fixed backoff sequence, adding up to
// 10% random jitter to each delay, stopping when stop is closed. Intended to run in its own goroutine from the
// self-healing manager.
func (c *Client) Reconnect(stop <-chan struct{}) {
	delays := c.cfg.BackoffDelays
	if len(delays) == 0 {
		delays = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
			16 * time.Second, 30 * time.Second, 60 * time.Second}
	}

	attempt := 0
	for {
		if c.IsConnected() {
			return
		}
		if err := c.Connect(); err == nil {
			return
		}
		delay := delays[attempt]
		if attempt < len(delays)-1 {
			attempt++
		}
		jitter := time.Duration(rand.Int63n(int64(delay)/10 + 1))
		select {
		case <-time.After(delay + jitter):
		case <-stop:
			return
		}
	}
}

// IsConnected reports whether the underlying session is currently live.
func (c *Client) IsConnected() bool {
	return c.client != nil && c.client.IsConnected()
}

// Publish sends payload to topic at QoS 1 and waits for the broker's ack.
func (c *Client) Publish(topic string, payload []byte) error {
	if !c.IsConnected() {
		return domain.ErrNotConnected
	}
	token := c.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(10 * time.Second) {
		return domain.ErrPublishTimeout
	}
	return token.Error()
}

// MessageHandler processes an inbound message on a subscribed topic.
type MessageHandler func(topic string, payload []byte)

// Subscribe registers handler for topic at QoS 1.
func (c *Client) Subscribe(topic string, handler MessageHandler) error {
	token := c.client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	token.Wait()
	return token.Error()
}

// Disconnect closes the session, waiting up to 250ms to flush in-flight
// QoS-1 acks.
func (c *Client) Disconnect() {
	if c.client != nil {
		c.client.Disconnect(250)
	}
}

func buildTLSConfig(cfg Config) (*tls.Config, error) {
	if cfg.ClientCertFile == "" {
		return nil, nil // unencrypted broker — used only in local development
	}

	cert, err := tls.LoadX509KeyPair(cfg.ClientCertFile, cfg.ClientKeyFile)
	if err != nil {
		return nil, fmt.Errorf("load client keypair: %w", err)
	}

	pool := x509.NewCertPool()
	if cfg.CAFile != "" {
		caBytes, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read ca file: %w", err)
		}
		if !pool.AppendCertsFromPEM(caBytes) {
			return nil, fmt.Errorf("parse ca file: no certificates found")
		}
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS12,
	}, nil
}
