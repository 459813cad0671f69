package consume

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/anhofmann/radio-tracking/internal/tracking"
)

const mqttConnectTimeout = 10 * time.Second

// MQTTConfig holds broker connection settings.
type MQTTConfig struct {
	Broker      string `yaml:"broker"` // e.g. tcp://localhost:1883
	ClientID    string `yaml:"clientID"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topicPrefix"` // default "radiotracking"
	QoS         byte   `yaml:"qos"`
}

type signalPayload struct {
	Device    string  `json:"device"`
	Time      string  `json:"time"`
	DurationS float64 `json:"duration_s"`
	Frequency float64 `json:"frequency"`
	Bandwidth float64 `json:"bandwidth"`
	MinDBW    float64 `json:"min_dbw"`
	MaxDBW    float64 `json:"max_dbw"`
	AvgDBW    float64 `json:"avg_dbw"`
	StdDB     float64 `json:"std_db"`
	NoiseDBW  float64 `json:"noise_dbw"`
	SNRDB     float64 `json:"snr_db"`
}

type matchPayload struct {
	Time      string          `json:"time"`
	DurationS float64         `json:"duration_s"`
	Frequency float64         `json:"frequency"`
	Devices   []string        `json:"devices"`
	Members   []signalPayload `json:"members"`
}

// MQTTSink publishes detections as JSON, one topic per device for signals
// and a shared topic for matched groups.
type MQTTSink struct {
	client mqtt.Client
	prefix string
	qos    byte
}

// NewMQTTSink connects to the broker.
func NewMQTTSink(cfg MQTTConfig) (*MQTTSink, error) {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "radiotracking"
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "radio-tracking"
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(mqttConnectTimeout)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("mqtt: connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connecting to %s: %w", cfg.Broker, err)
	}

	return &MQTTSink{client: client, prefix: cfg.TopicPrefix, qos: cfg.QoS}, nil
}

func (s *MQTTSink) PublishSignal(sig tracking.Signal) error {
	payload, err := json.Marshal(toSignalPayload(sig))
	if err != nil {
		return fmt.Errorf("mqtt: marshaling signal: %w", err)
	}

	topic := fmt.Sprintf("%s/%s/signal", s.prefix, sig.Device)
	token := s.client.Publish(topic, s.qos, false, payload)
	token.Wait()
	return token.Error()
}

func (s *MQTTSink) PublishMatch(m *tracking.MatchedSignal) error {
	members := make([]signalPayload, len(m.Members))
	for i, member := range m.Members {
		members[i] = toSignalPayload(member)
	}

	payload, err := json.Marshal(matchPayload{
		Time:      m.Time().UTC().Format(time.RFC3339Nano),
		DurationS: m.Duration().Seconds(),
		Frequency: m.Frequency(),
		Devices:   m.Devices(),
		Members:   members,
	})
	if err != nil {
		return fmt.Errorf("mqtt: marshaling match: %w", err)
	}

	token := s.client.Publish(fmt.Sprintf("%s/matched", s.prefix), s.qos, false, payload)
	token.Wait()
	return token.Error()
}

func (s *MQTTSink) Close() error {
	s.client.Disconnect(250)
	return nil
}

func toSignalPayload(sig tracking.Signal) signalPayload {
	return signalPayload{
		Device:    sig.Device,
		Time:      sig.Time.UTC().Format(time.RFC3339Nano),
		DurationS: sig.Duration.Seconds(),
		Frequency: sig.Frequency,
		Bandwidth: sig.Bandwidth,
		MinDBW:    sig.MinDBW,
		MaxDBW:    sig.MaxDBW,
		AvgDBW:    sig.AvgDBW,
		StdDB:     sig.StdDB,
		NoiseDBW:  sig.NoiseDBW,
		SNRDB:     sig.SNRDB,
	}
}
