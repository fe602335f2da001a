package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"brickforge.ai/internal/engine"
	"brickforge.ai/internal/lattice"
	"brickforge.ai/internal/protocol"
)

type rawResponse struct {
	protocol.Response
	Result json.RawMessage `json:"result"`
}

func dial(t *testing.T) *websocket.Conn {
	t.Helper()
	svc := engine.New(engine.Options{})
	srv := httptest.NewServer(NewServer(svc, lattice.MaxUnits, nil).Handler())
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func recv[T any](t *testing.T, conn *websocket.Conn) T {
	t.Helper()
	var v T
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&v); err != nil {
		t.Fatalf("read: %v", err)
	}
	return v
}

func TestServer_HandshakeThenRequests(t *testing.T) {
	conn := dial(t)
	send(t, conn, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: "test", MaxInFlight: 1})

	welcome := recv[protocol.WelcomeMsg](t, conn)
	if welcome.Type != protocol.TypeWelcome || welcome.SessionID == "" {
		t.Fatalf("welcome=%+v", welcome)
	}
	if welcome.Catalogs.Archetypes.Digest == "" || welcome.Catalogs.Archetypes.Count == 0 || welcome.MaxUnits != lattice.MaxUnits {
		t.Fatalf("welcome catalogs=%+v", welcome.Catalogs)
	}

	send(t, conn, map[string]any{
		"type":       protocol.TypeSymmetry,
		"request_id": "r1",
		"units": []map[string]any{
			{"type": "1x1", "x": 0, "y": 0, "z": 0, "color": "red"},
			{"type": "1x1", "x": 4, "y": 0, "z": 0, "color": "red"},
		},
	})
	resp := recv[rawResponse](t, conn)
	if !resp.OK || resp.RequestID != "r1" || resp.For != protocol.TypeSymmetry {
		t.Fatalf("resp=%+v", resp.Response)
	}
	var sym struct {
		Score       float64 `json:"score"`
		Symmetrical bool    `json:"symmetrical"`
	}
	if err := json.Unmarshal(resp.Result, &sym); err != nil {
		t.Fatalf("result: %v", err)
	}
	if sym.Score != 1 || !sym.Symmetrical {
		t.Fatalf("symmetry=%+v", sym)
	}

	send(t, conn, map[string]any{"type": "ANALYZE", "request_id": "r2", "units": []map[string]any{{"type": "1x1", "x": 0.5, "y": 0, "z": 0}}})
	bad := recv[protocol.Response](t, conn)
	if bad.OK || bad.Code != protocol.ErrBadRequest || bad.RequestID != "r2" {
		t.Fatalf("bad=%+v", bad)
	}
}

func TestServer_RejectsMissingHello(t *testing.T) {
	conn := dial(t)
	send(t, conn, map[string]any{"type": protocol.TypeAnalyze})
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}
