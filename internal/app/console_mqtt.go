package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/tilt_computer/internal/config"
	"github.com/relabs-tech/tilt_computer/internal/orientation"
	"github.com/relabs-tech/tilt_computer/internal/sampler"
)

// poseLine formats a pose message.
func poseLine(p orientation.Pose) string {
	return fmt.Sprintf("[POSE]  ROLL=%7.2f  PITCH=%7.2f", p.Roll, p.Pitch)
}

// reportLine formats a report message, with its age relative to now.
func reportLine(r sampler.Report, now time.Time) string {
	accel, gyro := string(r.AccelStatus), string(r.GyroStatus)
	if r.Accel != nil {
		accel = fmt.Sprintf("ax=%6.3f ay=%6.3f az=%6.3f", r.Accel.X, r.Accel.Y, r.Accel.Z)
	}
	if r.Gyro != nil {
		gyro = fmt.Sprintf("gx=%7.2f gy=%7.2f gz=%7.2f", r.Gyro.X, r.Gyro.Y, r.Gyro.Z)
	}
	return fmt.Sprintf("[IMU #%d]  accel %s  gyro %s  (%s)",
		r.Seq, accel, gyro, humanize.RelTime(r.Time, now, "ago", "from now"))
}

// consoleHandlers returns the subscription callbacks, printing to out.
func consoleHandlers(out io.Writer, now func() time.Time) (pose, report mqtt.MessageHandler) {
	pose = func(_ mqtt.Client, msg mqtt.Message) {
		var p orientation.Pose
		if err := json.Unmarshal(msg.Payload(), &p); err != nil {
			log.WithField("component", "console").Warnf("pose unmarshal error: %v", err)
			return
		}
		fmt.Fprintln(out, poseLine(p))
	}
	report = func(_ mqtt.Client, msg mqtt.Message) {
		var r sampler.Report
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			log.WithField("component", "console").Warnf("imu unmarshal error: %v", err)
			return
		}
		fmt.Fprintln(out, reportLine(r, now()))
	}
	return pose, report
}

// RunConsoleMQTT subscribes to the pose and IMU topics and prints every
// message until ctx is done.
func RunConsoleMQTT(ctx context.Context, out io.Writer) error {
	cfg := config.Get()
	if cfg.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is not configured")
	}

	client, err := ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	defer client.Disconnect(mqttDisconnectMS)

	onPose, onReport := consoleHandlers(out, time.Now)
	subs := []struct {
		topic string
		h     mqtt.MessageHandler
	}{
		{cfg.TopicPose, onPose},
		{cfg.TopicIMU, onReport},
	}
	for _, s := range subs {
		token := client.Subscribe(s.topic, mqttQoS, s.h)
		token.Wait()
		if token.Error() != nil {
			return fmt.Errorf("subscribe %s: %w", s.topic, token.Error())
		}
		log.WithField("component", "console").Infof("subscribed to %s", s.topic)
	}

	<-ctx.Done()
	log.WithField("component", "console").Info("shutting down")
	return nil
}
