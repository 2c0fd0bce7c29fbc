package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/traffic-relay/internal/infrastructure/mqtt"
	"github.com/nerrad567/traffic-relay/internal/relay"
)

// publishTimeout bounds the connect for a one-shot publish.
const publishTimeout = 10 * time.Second

func newPublishCmd(flags *brokerFlags) *cobra.Command {
	var retained bool

	cmd := &cobra.Command{
		Use:   "publish <light1|light2> <value>",
		Short: "Publish a single light value",
		Long: "Publishes value verbatim to the topic of the named light. Any string is " +
			"accepted; the relay forwards it unchanged.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			topic, err := flags.topicFor(args[0])
			if err != nil {
				return err
			}
			cfg, err := flags.mqttConfig()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), publishTimeout)
			defer cancel()

			client := mqtt.New(cfg)
			if err := client.Connect(ctx); err != nil {
				return err
			}
			defer client.Close() //nolint:errcheck // Exiting either way

			if err := client.PublishString(topic, args[1], byte(cfg.QoS), retained); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <- %q\n", topic, args[1])
			return nil
		},
	}

	cmd.Flags().BoolVar(&retained, "retain", false, "Ask the broker to retain the message")
	return cmd
}

// topicFor maps a light name to its configured topic.
func (f *brokerFlags) topicFor(name string) (string, error) {
	switch light := relay.Light(name); {
	case !light.Valid():
		return "", fmt.Errorf("unknown light %q: want %s or %s", name, relay.Light1, relay.Light2)
	case light == relay.Light1:
		return f.light1, mqtt.ValidatePublishTopic(f.light1)
	default:
		return f.light2, mqtt.ValidatePublishTopic(f.light2)
	}
}
