// Package mqtt provides MQTT client connectivity for the traffic relay.
//
// This package manages:
//   - Single-attempt connection to the broker (the caller owns retries)
//   - Topic subscriptions with ordered handler delivery
//   - Message publishing with QoS validation
//   - Retained online/offline status with a matching Last Will
//
// # Architecture
//
// Light controllers publish color strings on traffic/light1 and
// traffic/light2. The relay subscribes to both and fans values out to
// browsers over WebSocket.
//
//	Light controller → MQTT Broker → Traffic Relay → Browsers
//
// Paho's auto-reconnect is disabled. The relay loop in internal/relay
// detects loss through IsConnected and the OnDisconnect callback, waits,
// and calls Connect again, then re-subscribes.
//
// # Security Considerations
//
//   - Enable TLS (cfg.Broker.TLS=true) when the broker is not on a trusted LAN
//   - Pass credentials through TRAFFICRELAY_MQTT_USERNAME/PASSWORD
//
// # Usage
//
//	client := mqtt.New(cfg.MQTT)
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err := client.Subscribe(mqtt.Topics{}.Light(1), 0,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
package mqtt
