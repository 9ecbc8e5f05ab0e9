// Package broker wraps the MQTT broker connection the bridge publishes
// notifications to and receives read/write requests from, implemented over
// github.com/eclipse/paho.mqtt.golang.
package broker

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"dbusmqtt/internal/app/errors"
)

// Options configures a broker connection.
type Options struct {
	Host       string
	Port       int
	ClientID   string
	Username   string
	Password   string
	CACertPath string
}

// Client is the bridge's view of the broker connection: connect, subscribe,
// publish, and the two callbacks the core loop relies on to learn about
// connection state and inbound requests.
type Client interface {
	Connect(ctx context.Context) error
	Disconnect()
	Subscribe(topic string, qos byte) error
	Publish(topic string, payload []byte, retain bool) error
	Connected() bool

	// OnConnect registers a callback invoked (including on every
	// reconnect) once the broker handshake completes.
	OnConnect(func())

	// OnMessage registers a callback invoked for every inbound publish
	// on any topic this client has subscribed to.
	OnMessage(func(topic string, payload []byte))
}

type client struct {
	opts        Options
	mqttClient  mqtt.Client
	onConnect   func()
	onMessage   func(topic string, payload []byte)
}

// New builds a Client from Options; it does not connect until Connect is
// called.
func New(opts Options) Client {
	c := &client{opts: opts}

	mqttOpts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", opts.Host, opts.Port)).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetOrderMatters(false)

	if opts.Username != "" {
		mqttOpts.SetUsername(opts.Username)
		mqttOpts.SetPassword(opts.Password)
	}

	if opts.CACertPath != "" {
		if tlsConfig, err := loadTLSConfig(opts.CACertPath); err == nil {
			mqttOpts.SetTLSConfig(tlsConfig)
		}
	}

	mqttOpts.SetOnConnectHandler(func(_ mqtt.Client) {
		if c.onConnect != nil {
			c.onConnect()
		}
	})

	mqttOpts.SetDefaultPublishHandler(func(_ mqtt.Client, msg mqtt.Message) {
		if c.onMessage != nil {
			c.onMessage(msg.Topic(), msg.Payload())
		}
	})

	c.mqttClient = mqtt.NewClient(mqttOpts)

	return c
}

func loadTLSConfig(caCertPath string) (*tls.Config, error) {
	pem, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, err
	}

	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(pem)

	return &tls.Config{RootCAs: pool}, nil
}

func (c *client) Connect(ctx context.Context) error {
	token := c.mqttClient.Connect()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(30 * time.Second)
	}

	if !token.WaitTimeout(time.Until(deadline)) {
		return fmt.Errorf("%w: timed out connecting", errors.ErrBrokerConnectFailed)
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrBrokerConnectFailed, err)
	}

	return nil
}

func (c *client) Disconnect() {
	c.mqttClient.Disconnect(250)
}

func (c *client) Subscribe(topic string, qos byte) error {
	token := c.mqttClient.Subscribe(topic, qos, nil)
	token.Wait()

	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrBrokerSubscribeFailed, err)
	}

	return nil
}

func (c *client) Publish(topic string, payload []byte, retain bool) error {
	token := c.mqttClient.Publish(topic, 0, retain, payload)
	token.Wait()

	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrBrokerPublishFailed, err)
	}

	return nil
}

func (c *client) Connected() bool {
	return c.mqttClient.IsConnectionOpen()
}

func (c *client) OnConnect(fn func())                              { c.onConnect = fn }
func (c *client) OnMessage(fn func(topic string, payload []byte)) { c.onMessage = fn }
