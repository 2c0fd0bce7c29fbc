package influxdb

import (
	"context"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/traffic-relay/internal/relay"
)

// MeasurementLightTransition is the measurement name for light updates.
const MeasurementLightTransition = "light_transition"

// RecordChange queues one light_transition point. It satisfies
// relay.ChangeRecorder. The write is non-blocking; delivery failures are
// reported through SetOnError.
func (c *Client) RecordChange(_ context.Context, change relay.Change) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	c.writer.WritePoint(lightPoint(change))
	return nil
}

// lightPoint builds the point for change. The slot is a tag; values are
// string fields so any payload is stored verbatim.
func lightPoint(change relay.Change) *write.Point {
	at := change.At
	if at.IsZero() {
		at = time.Now()
	}

	return write.NewPoint(
		MeasurementLightTransition,
		map[string]string{
			"light": string(change.Light),
		},
		map[string]any{
			"value":  change.Value,
			"light1": change.Snapshot.Light1,
			"light2": change.Snapshot.Light2,
		},
		at,
	)
}
