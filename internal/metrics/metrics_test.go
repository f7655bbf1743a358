package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ConnectionOpened()
	c.ConnectionOpened()
	c.ConnectionClosed()
	c.AuthRejected("invalid_token")
	c.AuthRejected("invalid_token")
	c.RoomOp("join_room", "ok")
	c.RoomOp("join_room", "rejected")
	c.GameFinished("draw")
	c.SessionsActive(3)
	c.RoomsActive(2)
	c.MessageDropped()

	if got := testutil.ToFloat64(c.connections); got != 1 {
		t.Fatalf("connections = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.authRejections.WithLabelValues("invalid_token")); got != 2 {
		t.Fatalf("auth rejections = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.roomOps.WithLabelValues("join_room", "ok")); got != 1 {
		t.Fatalf("room ops = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.gamesFinished.WithLabelValues("draw")); got != 1 {
		t.Fatalf("games finished = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.sessions); got != 3 {
		t.Fatalf("sessions = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.rooms); got != 2 {
		t.Fatalf("rooms = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.dropped); got != 1 {
		t.Fatalf("dropped = %v, want 1", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RoomsActive(4)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "lobby_rooms_active 4") {
		t.Fatalf("metrics output missing gauge:\n%s", body)
	}
}

func TestNopSatisfiesRecorder(t *testing.T) {
	var r Recorder = Nop{}
	r.RoomOp("create_room", "ok")
	r = NewCollector(prometheus.NewRegistry())
	r.MessageDropped()
}
