package app

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/tilt_computer/internal/sampler"
)

const (
	mqttQoS          = 0
	mqttDisconnectMS = 250
	mqttMaxWait      = 250 * time.Millisecond
)

// PublishWait is how long MQTTSink may block one sample tick: a quarter of
// the period, at most mqttMaxWait. Sinks run inside the sample loop, so a
// slow broker must not stretch the tick past the filter's dt.
func PublishWait(period time.Duration) time.Duration {
	w := period / 4
	if w <= 0 || w > mqttMaxWait {
		return mqttMaxWait
	}
	return w
}

// ConnectMQTT connects to broker with the given client id.
func ConnectMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.WithField("component", "mqtt").Warnf("connection lost: %v", err)
		})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect %s: %w", broker, token.Error())
	}
	log.WithField("component", "mqtt").Infof("connected to MQTT broker at %s", broker)
	return client, nil
}

// MQTTSink publishes the fused pose and the full report, retained, so late
// subscribers get the current attitude straight away.
type MQTTSink struct {
	client    mqtt.Client
	topicPose string
	topicIMU  string
	wait      time.Duration
	now       func() time.Time
}

// NewMQTTSink returns a sink whose Publish waits at most wait for the broker
// across both topics. Unacknowledged messages stay queued in the client.
func NewMQTTSink(client mqtt.Client, topicPose, topicIMU string, wait time.Duration) *MQTTSink {
	return &MQTTSink{client: client, topicPose: topicPose, topicIMU: topicIMU, wait: wait, now: time.Now}
}

// Publish sends the report on the IMU topic and, once the estimator is
// tracking, the pose on the pose topic.
func (m *MQTTSink) Publish(r sampler.Report) error {
	deadline := m.now().Add(m.wait)
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("json marshal error (report): %w", err)
	}
	if err := m.send(m.topicIMU, payload, deadline); err != nil {
		return err
	}

	if !r.Tracking {
		return nil
	}
	payload, err = json.Marshal(r.Pose)
	if err != nil {
		return fmt.Errorf("json marshal error (pose): %w", err)
	}
	return m.send(m.topicPose, payload, deadline)
}

func (m *MQTTSink) send(topic string, payload []byte, deadline time.Time) error {
	token := m.client.Publish(topic, mqttQoS, true, payload)
	left := deadline.Sub(m.now())
	if left <= 0 || !token.WaitTimeout(left) {
		return fmt.Errorf("MQTT publish %s: not acknowledged within %s", topic, m.wait)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("MQTT publish %s: %w", topic, err)
	}
	return nil
}
