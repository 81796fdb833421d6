// Package mqtt publishes station events to an MQTT broker. The notifier is
// optional; when disabled the station runs without it and nothing else
// changes.
package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"

	paho "github.com/eclipse/paho.mqtt.golang"

	corelogger "github.com/kilianp07/evstation/core/logger"
	"github.com/kilianp07/evstation/infra/logger"
	"github.com/kilianp07/evstation/internal/eventbus"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Enabled     bool        `json:"enabled"`
	Broker      string      `json:"broker"`
	ClientID    string      `json:"client_id"`
	Username    string      `json:"username"`
	Password    string      `json:"password"`
	TopicPrefix string      `json:"topic_prefix"`
	QoS         byte        `json:"qos"`
	UseTLS      bool        `json:"use_tls"`
	ClientCert  string      `json:"client_cert"`
	ClientKey   string      `json:"client_key"`
	CABundle    string      `json:"ca_bundle"`
	TLSConfig   *tls.Config `json:"-"`
}

// SetDefaults applies connection defaults.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "evstation"
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = "station"
	}
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// Notifier republishes event bus traffic onto station topics.
type Notifier struct {
	cli    pahoClient
	prefix string
	qos    byte
	log    corelogger.Logger
	bus    eventbus.EventBus
	events <-chan eventbus.Event
	done   chan struct{}
}

// NewNotifier connects to the broker and starts forwarding bus events.
func NewNotifier(cfg Config, bus eventbus.EventBus) (*Notifier, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}

	log := logger.NewZerologLogger("mqtt_notifier")
	opts.OnConnect = func(paho.Client) {
		log.Infof("MQTT connected")
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	n := &Notifier{
		cli:    c,
		prefix: cfg.TopicPrefix,
		qos:    cfg.QoS,
		log:    log,
		bus:    bus,
		events: bus.Subscribe(64),
		done:   make(chan struct{}),
	}
	go n.run()
	return n, nil
}

func (n *Notifier) run() {
	defer close(n.done)
	for e := range n.events {
		topic, payload, ok := n.encode(e)
		if !ok {
			continue
		}
		token := n.cli.Publish(topic, n.qos, false, payload)
		token.Wait()
		if err := token.Error(); err != nil {
			n.log.Errorf("publish %s: %v", topic, err)
		}
	}
}

func (n *Notifier) encode(e eventbus.Event) (string, []byte, bool) {
	var (
		topic string
		body  any
	)
	switch ev := e.(type) {
	case eventbus.BillEvent:
		topic = n.prefix + "/bills"
		body = ev
	case eventbus.AllocationEvent:
		topic = n.prefix + "/allocations"
		body = ev
	case eventbus.PileFaultEvent:
		topic = fmt.Sprintf("%s/piles/%s/fault", n.prefix, ev.PileID)
		body = ev
	case eventbus.PileRepairedEvent:
		topic = fmt.Sprintf("%s/piles/%s/repaired", n.prefix, ev.PileID)
		body = ev
	default:
		return "", nil, false
	}
	payload, err := json.Marshal(body)
	if err != nil {
		n.log.Errorf("encode event for %s: %v", topic, err)
		return "", nil, false
	}
	return topic, payload, true
}

// Close unsubscribes from the bus, drains the forwarder and disconnects.
func (n *Notifier) Close() {
	n.bus.Unsubscribe(n.events)
	<-n.done
	if n.cli != nil && n.cli.IsConnected() {
		n.cli.Disconnect(250)
	}
}
