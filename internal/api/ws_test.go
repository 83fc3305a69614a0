package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestScenarioEventsWS(t *testing.T) {
	s := newTestServer(t)
	sc := createScenario(t, s, microcentro)

	srv := httptest.NewServer(http.HandlerFunc(s.ScenarioByIDHandler))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/scenarios/" + sc.ID + "/events/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v (resp %v)", err, resp)
	}
	defer conn.Close()

	// let the handler subscribe before publishing
	time.Sleep(50 * time.Millisecond)
	s.Broker.Publish(sc.ID, SSEEvent{Type: "solve.completed", Data: map[string]any{"solveId": "sv1"}})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "solve.completed" || msg.Data["solveId"] != "sv1" {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestScenarioEventsWSUnknownScenario(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(http.HandlerFunc(s.ScenarioByIDHandler))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/scenarios/nope/events/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("dial to unknown scenario should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", resp)
	}
}
