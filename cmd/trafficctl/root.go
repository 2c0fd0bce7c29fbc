package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nerrad567/traffic-relay/internal/infrastructure/config"
	"github.com/nerrad567/traffic-relay/internal/infrastructure/logging"
	"github.com/nerrad567/traffic-relay/internal/infrastructure/mqtt"
)

// brokerFlags are shared by every command that talks to MQTT.
type brokerFlags struct {
	host     string
	port     int
	tls      bool
	username string
	password string
	clientID string
	light1   string
	light2   string
	qos      int
	logLevel string
}

func newRootCmd() *cobra.Command {
	defaults := config.Default()
	flags := &brokerFlags{}

	root := &cobra.Command{
		Use:          "trafficctl",
		Short:        "Drive and observe a traffic relay",
		Long:         "Publish traffic light values over MQTT and watch the frames a relay pushes to browsers.",
		Version:      version,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.host, "host", defaults.MQTT.Broker.Host, "MQTT broker host")
	pf.IntVarP(&flags.port, "port", "p", defaults.MQTT.Broker.Port, "MQTT broker port")
	pf.BoolVar(&flags.tls, "tls", false, "Connect to the broker over TLS")
	pf.StringVarP(&flags.username, "username", "u", "", "Username used to authenticate with the MQTT broker")
	pf.StringVar(&flags.password, "password", "", "Password used to authenticate with the MQTT broker")
	pf.StringVar(&flags.clientID, "client-id", "trafficctl", "MQTT client identifier")
	pf.StringVar(&flags.light1, "light1-topic", mqtt.Topics{}.Light(1), "Topic for light 1")
	pf.StringVar(&flags.light2, "light2-topic", mqtt.Topics{}.Light(2), "Topic for light 2")
	pf.IntVar(&flags.qos, "qos", 0, "MQTT QoS for published messages (0, 1 or 2)")
	pf.StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	root.AddCommand(
		newSimulateCmd(flags),
		newPublishCmd(flags),
		newWatchCmd(),
	)
	return root
}

// mqttConfig converts the flags to the relay's broker config. The status
// topic is left empty so the CLI never publishes a last will.
func (f *brokerFlags) mqttConfig() (config.MQTTConfig, error) {
	if f.qos < 0 || f.qos > 2 {
		return config.MQTTConfig{}, fmt.Errorf("qos must be 0, 1, or 2")
	}
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     f.host,
			Port:     f.port,
			TLS:      f.tls,
			ClientID: f.clientID,
		},
		Auth: config.MQTTAuthConfig{
			Username: f.username,
			Password: f.password,
		},
		QoS: f.qos,
	}, nil
}

// brokerURL returns the broker address in URL form.
func (f *brokerFlags) brokerURL() string {
	scheme := "mqtt"
	if f.tls {
		scheme = "mqtts"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, f.host, f.port)
}

func (f *brokerFlags) logger(w io.Writer) *logging.Logger {
	return logging.NewWithWriter(config.LoggingConfig{
		Level:  f.logLevel,
		Format: "text",
	}, version, w)
}
