package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestRootCommands(t *testing.T) {
	root := newRootCmd()

	for _, name := range []string{"simulate", "publish", "watch"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered (err=%v)", name, err)
		}
	}

	host, err := root.PersistentFlags().GetString("host")
	if err != nil || host != "localhost" {
		t.Errorf("--host default = %q, %v; want localhost", host, err)
	}
	for flag, want := range map[string]string{
		"light1-topic": "traffic/light1",
		"light2-topic": "traffic/light2",
	} {
		topic, err := root.PersistentFlags().GetString(flag)
		if err != nil || topic != want {
			t.Errorf("--%s default = %q, %v; want %s", flag, topic, err, want)
		}
	}
}

func TestMQTTConfig(t *testing.T) {
	f := &brokerFlags{host: "broker", port: 1884, clientID: "cli", username: "u", password: "p", qos: 1}
	cfg, err := f.mqttConfig()
	if err != nil {
		t.Fatalf("mqttConfig() error = %v", err)
	}
	if cfg.Broker.Host != "broker" || cfg.Broker.Port != 1884 || cfg.Broker.ClientID != "cli" {
		t.Errorf("broker config = %+v", cfg.Broker)
	}
	if cfg.Auth.Username != "u" || cfg.Auth.Password != "p" {
		t.Errorf("auth config = %+v", cfg.Auth)
	}
	if cfg.StatusTopic != "" {
		t.Errorf("StatusTopic = %q, want empty", cfg.StatusTopic)
	}

	for _, qos := range []int{-1, 3} {
		f.qos = qos
		if _, err := f.mqttConfig(); err == nil {
			t.Errorf("qos %d: expected error", qos)
		}
	}
}

func TestBrokerURL(t *testing.T) {
	tests := []struct {
		flags brokerFlags
		want  string
	}{
		{flags: brokerFlags{host: "localhost", port: 1883}, want: "mqtt://localhost:1883"},
		{flags: brokerFlags{host: "10.0.0.5", port: 8883, tls: true}, want: "mqtts://10.0.0.5:8883"},
	}
	for _, tt := range tests {
		if got := tt.flags.brokerURL(); got != tt.want {
			t.Errorf("brokerURL() = %q, want %q", got, tt.want)
		}
	}
}

func TestTopicFor(t *testing.T) {
	f := &brokerFlags{light1: "traffic/light1", light2: "junction/b"}

	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{name: "light1", want: "traffic/light1"},
		{name: "light2", want: "junction/b"},
		{name: "light3", wantErr: true},
		{name: "", wantErr: true},
		{name: "LIGHT1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.topicFor(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("topicFor(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("topicFor(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}

	f.light1 = "traffic/+"
	if _, err := f.topicFor("light1"); err == nil {
		t.Error("wildcard topic: expected error")
	}
}

func TestPublishRejectsBadArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "unknown light", args: []string{"publish", "light3", "red"}},
		{name: "missing value", args: []string{"publish", "light1"}},
		{name: "bad qos", args: []string{"publish", "light1", "red", "--qos", "5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := newRootCmd()
			root.SetArgs(tt.args)
			root.SetOut(&bytes.Buffer{})
			root.SetErr(&bytes.Buffer{})
			if err := root.Execute(); err == nil {
				t.Errorf("Execute(%v) expected error", tt.args)
			}
		})
	}
}

func frameServer(t *testing.T, frames []string, hold bool) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		if hold {
			// Block until the client goes away.
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}
		//nolint:errcheck // Best-effort close message
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestWatchPrintsFrames(t *testing.T) {
	srv := frameServer(t, []string{"red,green", "green,red", "yellow,green"}, true)

	var out bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := watch(ctx, wsURL(srv, "/"), "", 2, &out); err != nil {
		t.Fatalf("watch() error = %v", err)
	}
	if got, want := out.String(), "red,green\ngreen,red\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestWatchServerClose(t *testing.T) {
	srv := frameServer(t, []string{"red,green"}, false)

	var out bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := watch(ctx, wsURL(srv, "/"), "", 0, &out); err != nil {
		t.Fatalf("watch() error = %v, want nil on normal closure", err)
	}
	if out.String() != "red,green\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestWatchStopsOnCancel(t *testing.T) {
	srv := frameServer(t, nil, true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watch(ctx, wsURL(srv, "/"), "", 0, &bytes.Buffer{}) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("watch() error = %v, want nil on cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch() did not return after cancel")
	}
}

func TestWatchDialError(t *testing.T) {
	srv := frameServer(t, nil, false)

	err := watch(context.Background(), wsURL(srv, "/other"), "", 1, &bytes.Buffer{})
	if err == nil {
		t.Fatal("watch() expected error for rejected handshake")
	}
	if !strings.Contains(err.Error(), "403") {
		t.Errorf("error %q does not report the status", err)
	}
}
