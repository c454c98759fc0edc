package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	coremqtt "github.com/kilianp07/vmc/core/mqtt"
	"github.com/kilianp07/vmc/core/monitoring"
	"github.com/kilianp07/vmc/infra/logger"
)

// Payloads published on the availability topic.
const (
	AvailabilityOnline  = "online"
	AvailabilityOffline = "offline"
)

// Config defines the connection parameters for the Paho MQTT client.
// The mirror is disabled when Broker is empty.
type Config struct {
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
	MaxRetries  int         `json:"max_retries"`
	BackoffMS   int         `json:"backoff_ms"`
	TLSConfig   *tls.Config `json:"-"`
}

// Enabled reports whether a broker is configured.
func (c Config) Enabled() bool { return c.Broker != "" }

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "vmc-" + uuid.NewString()[:8]
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = "vmc"
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS == 0 {
		c.BackoffMS = 100
	}
}

// Validate checks the configuration when the mirror is enabled.
func (c Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.QoS)
	}
	if c.MaxRetries < 0 || c.BackoffMS < 0 {
		return fmt.Errorf("mqtt.max_retries and mqtt.backoff_ms must be positive")
	}
	if c.UseTLS && c.TLSConfig == nil && (c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "") {
		return fmt.Errorf("mqtt tls requires client_cert, client_key and ca_bundle")
	}
	return nil
}

// AvailabilityTopic is the retained topic carrying online/offline.
func (c Config) AvailabilityTopic() string {
	return c.TopicPrefix + "/availability"
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// PahoClient implements coremqtt.Publisher using Eclipse Paho.
type PahoClient struct {
	cli          pahoClient
	qos          byte
	availability string
	logger     logger.Logger
	maxRetries int
	backoff    time.Duration
	sleep      func(time.Duration)
}

var _ coremqtt.Publisher = (*PahoClient)(nil)

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoClient connects to the MQTT broker. On every (re)connection the
// availability topic is set to online; the broker publishes offline as the
// last will when the connection drops.
func NewPahoClient(cfg Config) (*PahoClient, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_client")
	pc := &PahoClient{
		qos:          cfg.QoS,
		availability: cfg.AvailabilityTopic(),
		logger:       log,
		maxRetries:   cfg.MaxRetries,
		backoff:      time.Duration(cfg.BackoffMS) * time.Millisecond,
		sleep:        time.Sleep,
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected to %s", cfg.Broker)
		if token := c.Publish(pc.availability, cfg.QoS, true, AvailabilityOnline); token.Wait() && token.Error() != nil {
			log.Errorf("availability publish error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, token.Error())
	}
	pc.cli = c
	return pc, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
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
	opts.SetWill(cfg.AvailabilityTopic(), AvailabilityOffline, cfg.QoS, true)
	return opts, nil
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

// Publish sends payload to topic, retrying with exponential backoff. The
// final failure is reported to the monitor.
func (p *PahoClient) Publish(topic string, payload []byte, retained bool) error {
	if p.cli == nil || !p.cli.IsConnected() {
		return coremqtt.ErrNotConnected
	}
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(topic, p.qos, retained, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			p.logger.Debugf("published %d bytes to %s", len(payload), topic)
			return nil
		}
		p.logger.Errorf("publish attempt %d to %s failed: %v", attempt+1, topic, publishErr)
		if attempt < p.maxRetries {
			p.sleep(p.backoff * time.Duration(1<<attempt))
		}
	}
	monitoring.CaptureException(publishErr, map[string]string{"module": "mqtt", "topic": topic})
	return fmt.Errorf("publish %s: %w", topic, publishErr)
}

// Disconnect publishes offline and closes the MQTT connection.
func (p *PahoClient) Disconnect() {
	if p.cli == nil || !p.cli.IsConnected() {
		return
	}
	token := p.cli.Publish(p.availability, p.qos, true, AvailabilityOffline)
	token.WaitTimeout(time.Second)
	p.cli.Disconnect(250)
}
