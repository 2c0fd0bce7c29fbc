// Package simulator drives a pair of traffic lights over MQTT.
//
// Light 1 cycles red, yellow, green. Light 2 is red while light 1 is
// green and green otherwise. Each step publishes light 1 then light 2,
// so a relay sees two updates per step.
//
//	err := simulator.Run(ctx, pub, simulator.Config{
//	    Light1Topic: "traffic/light1",
//	    Light2Topic: "traffic/light2",
//	    Interval:    5 * time.Second,
//	})
package simulator
