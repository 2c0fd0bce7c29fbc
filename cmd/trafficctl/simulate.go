package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/spf13/cobra"

	"github.com/nerrad567/traffic-relay/internal/simulator"
)

// connectWait bounds the wait for the first broker connection.
const connectWait = 30 * time.Second

func newSimulateCmd(flags *brokerFlags) *cobra.Command {
	var (
		interval time.Duration
		count    int
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Cycle both lights through a fixed sequence",
		Long: "Publishes light 1 as red, yellow, green in turn. Light 2 is red while " +
			"light 1 is green and green otherwise. Runs until interrupted unless --count is set.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := flags.mqttConfig(); err != nil {
				return err
			}
			log := flags.logger(cmd.ErrOrStderr())

			cm, err := connectAutopaho(cmd.Context(), flags, log)
			if err != nil {
				return err
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				cm.Disconnect(ctx) //nolint:errcheck // Best-effort disconnect on exit
			}()

			steps, err := simulator.Run(cmd.Context(), &autopahoPublisher{cm: cm, qos: byte(flags.qos)}, simulator.Config{
				Light1Topic: flags.light1,
				Light2Topic: flags.light2,
				Interval:    interval,
				Count:       count,
				Logger:      log,
			})
			if err != nil {
				return err
			}
			log.Info("simulation finished", "steps", steps)
			return nil
		},
	}

	cmd.Flags().DurationVarP(&interval, "interval", "i", 5*time.Second, "Wait between steps")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Number of steps (0 runs until interrupted)")
	return cmd
}

// connectAutopaho starts a managed MQTT v5 connection. autopaho keeps
// reconnecting in the background, so a broker outage only costs the
// publishes made while it is down.
func connectAutopaho(ctx context.Context, flags *brokerFlags, log simulator.Logger) (*autopaho.ConnectionManager, error) {
	serverURL, err := url.Parse(flags.brokerURL())
	if err != nil {
		return nil, fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	cfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{serverURL},
		KeepAlive:       30,
		ConnectUsername: flags.username,
		ConnectPassword: []byte(flags.password),
		OnConnectionUp: func(*autopaho.ConnectionManager, *paho.Connack) {
			log.Info("mqtt connected to broker", "broker", serverURL.String())
		},
		OnConnectError: func(err error) {
			log.Warn("mqtt connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: flags.clientID,
		},
	}
	if flags.tls {
		cfg.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cm, err := autopaho.NewConnection(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, connectWait)
	defer cancel()
	if err := cm.AwaitConnection(waitCtx); err != nil {
		log.Warn("mqtt initial connection timed out, will retry in background", "error", err)
	}
	return cm, nil
}

// autopahoPublisher adapts a connection manager to simulator.Publisher.
type autopahoPublisher struct {
	cm  *autopaho.ConnectionManager
	qos byte
}

func (p *autopahoPublisher) Publish(ctx context.Context, topic, payload string) error {
	_, err := p.cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		Payload: []byte(payload),
		QoS:     p.qos,
	})
	return err
}
