// Package relay bridges the two traffic-light MQTT topics to browser clients.
//
// A Store holds the latest value of light1 and light2. A Relay owns the
// broker session: it connects, subscribes to both topics, and for every
// message overwrites the matching slot and broadcasts the frame
// "light1,light2" to all WebSocket clients.
//
// # State machine
//
//	Disconnected ──connect+subscribe ok──▶ Connected
//	     ▲                                     │
//	     └──── liveness check / lost callback ─┘
//
// While disconnected the relay retries forever, waiting DelayPolicy.Next
// between failed attempts (a fixed 5 seconds by default). Every successful
// connect broadcasts the current values, so a browser that joined during
// an outage is refreshed as soon as the broker returns.
//
// The relay runs in its own goroutine; an outage never blocks the HTTP or
// WebSocket servers.
//
// Registered ChangeRecorders are fed from a buffered queue drained by a
// second goroutine started by Run. When the queue is full a change is
// dropped and counted in Stats.ChangesDropped. Queued changes are flushed
// when Run returns.
//
// HealthCheck fails unless the relay is connected and both light topics
// are subscribed on the current broker session.
//
// # Usage
//
//	store := relay.NewStore("red", "green")
//	r, err := relay.New(relay.Options{
//	    Store:       store,
//	    Broker:      mqttClient,
//	    Broadcaster: hub,
//	    Light1Topic: "traffic/light1",
//	    Light2Topic: "traffic/light2",
//	})
//	mqttClient.SetOnDisconnect(r.NotifyDisconnected)
//	go r.Run(ctx)
package relay
