package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/relabs-tech/tilt_computer/internal/app"
	"github.com/relabs-tech/tilt_computer/internal/config"
)

const DefaultConfigPath = "tilt_config.txt"

var RootCmd = &cobra.Command{
	Use:   "tilt",
	Short: "two-axis tilt estimator for an MPU-6050 on I2C",
	Long: `tilt reads an MPU-6050 accelerometer/gyroscope over I2C and fuses both
into roll and pitch with a complementary filter.

Configuration is a KEY=VALUE file (--config, default ./tilt_config.txt if it
exists). Every key can be overridden with a TILT_<KEY> environment variable.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func setup(cmd *cobra.Command, _ []string) error {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}

	path, _ := cmd.Flags().GetString("config")
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); err != nil {
			// no default file: defaults and environment only
			path = ""
		}
	}
	if err := config.InitGlobal(path); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

var RunCmd = &cobra.Command{
	Use:        "run",
	SuggestFor: []string{"ru", "start"},
	Short:      "run the sample loop and every configured output",
	Long: `run initializes the MPU-6050, then samples it every IMU_SAMPLE_INTERVAL ms
and publishes the attitude to the log, MQTT, the web server, the OLED display
and an NMEA serial port, as configured.`,
	Example: `  tilt run --config=/etc/tilt_config.txt
  tilt run --simulate --debug`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		simulate, _ := cmd.Flags().GetBool("simulate")
		ctx, cancel := signalContext()
		defer cancel()
		err := app.RunTiltProducer(ctx, app.ProducerOptions{Simulate: simulate})
		if ctx.Err() != nil {
			log.Info("shutting down")
			return nil
		}
		return err
	},
}

var ConsoleCmd = &cobra.Command{
	Use:     "console",
	Short:   "print pose and IMU messages from the MQTT broker",
	Example: `  TILT_MQTT_BROKER=tcp://raspberrypi:1883 tilt console`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		return app.RunConsoleMQTT(ctx, cmd.OutOrStdout())
	},
}

var MonitorCmd = &cobra.Command{
	Use:     "monitor",
	Short:   "print XDR attitude sentences read from a serial port",
	Example: `  tilt monitor --port /dev/ttyUSB1 --baud 4800`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := config.Get()
		port, _ := cmd.Flags().GetString("port")
		baud, _ := cmd.Flags().GetInt("baud")
		if port == "" {
			port = cfg.NMEASerialPort
		}
		if baud == 0 {
			baud = cfg.NMEABaudRate
		}
		if port == "" {
			return fmt.Errorf("no serial port: use --port or NMEA_SERIAL_PORT")
		}
		ctx, cancel := signalContext()
		defer cancel()
		return app.RunMonitor(ctx, port, baud, cmd.OutOrStdout())
	},
}

var ScanCmd = &cobra.Command{
	Use:        "scan",
	SuggestFor: []string{"probe", "detect"},
	Short:      "scan the I2C bus and identify MPU-6050 devices",
	Example:    `  tilt scan`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return app.RunScan(cmd.OutOrStdout())
	},
}

var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "configuration helpers",
}

var ConfigShowCmd = &cobra.Command{
	Use:   "show",
	Short: "print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, _ []string) error {
		b, err := yaml.Marshal(config.Get())
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(b)
		return err
	},
}

func getRootCmd() *cobra.Command {
	RootCmd.PersistentFlags().String("config", DefaultConfigPath, "configuration file (KEY=VALUE)")
	RootCmd.PersistentFlags().Bool("debug", false, "toggle debug logging")

	RunCmd.Flags().Bool("simulate", false, "use a simulated sensor instead of the I2C bus")
	RootCmd.AddCommand(RunCmd)

	RootCmd.AddCommand(ConsoleCmd)

	MonitorCmd.Flags().String("port", "", "serial port (default NMEA_SERIAL_PORT)")
	MonitorCmd.Flags().Int("baud", 0, "baud rate (default NMEA_BAUD_RATE)")
	RootCmd.AddCommand(MonitorCmd)

	RootCmd.AddCommand(ScanCmd)

	ConfigCmd.AddCommand(ConfigShowCmd)
	RootCmd.AddCommand(ConfigCmd)

	return RootCmd
}

func Execute() {
	if err := getRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
