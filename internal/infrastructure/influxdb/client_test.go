package influxdb

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/traffic-relay/internal/infrastructure/config"
	"github.com/nerrad567/traffic-relay/internal/relay"
)

type fakeWriter struct {
	mu      sync.Mutex
	points  []*write.Point
	flushes int
}

func (w *fakeWriter) WritePoint(p *write.Point) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.points = append(w.points, p)
}

func (w *fakeWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushes++
}

type fakePinger struct {
	healthy bool
	err     error
}

func (p fakePinger) Ping(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return p.healthy, p.err
}

func newTestClient(w *fakeWriter, p pinger) *Client {
	return &Client{writer: w, ping: p, connected: true}
}

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{
		Enabled: true,
		URL:     "http://127.0.0.1:59999",
		Token:   "token",
		Org:     "traffic",
		Bucket:  "lights",
	})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestRecordChange_WritesPoint(t *testing.T) {
	w := &fakeWriter{}
	c := newTestClient(w, fakePinger{healthy: true})
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	err := c.RecordChange(context.Background(), relay.Change{
		Light:    relay.Light2,
		Value:    "red",
		Snapshot: relay.Snapshot{Light1: "green", Light2: "red"},
		At:       at,
	})
	if err != nil {
		t.Fatalf("RecordChange() error = %v", err)
	}

	if len(w.points) != 1 {
		t.Fatalf("points written = %d, want 1", len(w.points))
	}
	line := write.PointToLineProtocol(w.points[0], time.Second)

	for _, want := range []string{
		"light_transition,light=light2 ",
		`value="red"`,
		`light1="green"`,
		`light2="red"`,
		" 1772366400",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("line protocol %q missing %q", line, want)
		}
	}
}

func TestRecordChange_VerbatimPayload(t *testing.T) {
	w := &fakeWriter{}
	c := newTestClient(w, fakePinger{healthy: true})

	payload := `weird "quoted", value`
	if err := c.RecordChange(context.Background(), relay.Change{
		Light:    relay.Light1,
		Value:    payload,
		Snapshot: relay.Snapshot{Light1: payload, Light2: "green"},
		At:       time.Now(),
	}); err != nil {
		t.Fatalf("RecordChange() error = %v", err)
	}

	var got any
	for _, f := range w.points[0].FieldList() {
		if f.Key == "value" {
			got = f.Value
		}
	}
	if got != payload {
		t.Errorf("value field = %#v, want %q", got, payload)
	}
}

func TestRecordChange_NotConnected(t *testing.T) {
	w := &fakeWriter{}
	c := newTestClient(w, fakePinger{healthy: true})
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	err := c.RecordChange(context.Background(), relay.Change{Light: relay.Light1, Value: "red"})
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("RecordChange() error = %v, want ErrNotConnected", err)
	}
	if len(w.points) != 0 {
		t.Errorf("points written after Close = %d, want 0", len(w.points))
	}
}

func TestLightPoint_ZeroTime(t *testing.T) {
	before := time.Now()
	p := lightPoint(relay.Change{Light: relay.Light1, Value: "red"})
	if p.Time().Before(before) {
		t.Errorf("point time = %v, want >= %v", p.Time(), before)
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name    string
		pinger  fakePinger
		cancel  bool
		wantErr bool
	}{
		{name: "healthy", pinger: fakePinger{healthy: true}},
		{name: "unhealthy", pinger: fakePinger{healthy: false}, wantErr: true},
		{name: "ping error", pinger: fakePinger{err: errors.New("refused")}, wantErr: true},
		{name: "cancelled", pinger: fakePinger{healthy: true}, cancel: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(&fakeWriter{}, tt.pinger)
			ctx, cancel := context.WithCancel(context.Background())
			if tt.cancel {
				cancel()
			}
			defer cancel()

			err := c.HealthCheck(ctx)
			if (err != nil) != tt.wantErr {
				t.Errorf("HealthCheck() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHealthCheck_Closed(t *testing.T) {
	c := newTestClient(&fakeWriter{}, fakePinger{healthy: true})
	c.Close() //nolint:errcheck // Close never fails

	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestClose_FlushesOnce(t *testing.T) {
	w := &fakeWriter{}
	c := newTestClient(w, fakePinger{healthy: true})

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if w.flushes != 1 {
		t.Errorf("flushes = %d, want 1", w.flushes)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}

	c.Flush()
	if w.flushes != 1 {
		t.Errorf("Flush after Close wrote through: flushes = %d", w.flushes)
	}
}

func TestHandleWriteErrors(t *testing.T) {
	c := newTestClient(&fakeWriter{}, fakePinger{healthy: true})

	got := make(chan error, 1)
	c.SetOnError(func(err error) { got <- err })

	errs := make(chan error, 1)
	go c.handleWriteErrors(errs)
	errs <- errors.New("bucket not found")
	close(errs)

	select {
	case err := <-got:
		if err.Error() != "bucket not found" {
			t.Errorf("callback error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("write error not forwarded")
	}
}
