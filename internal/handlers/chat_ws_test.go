package handlers

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialChatWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readUntilEnd(t *testing.T, conn *websocket.Conn) (string, chatWSOutMessage) {
	t.Helper()
	var sb strings.Builder
	for {
		var out chatWSOutMessage
		if err := conn.ReadJSON(&out); err != nil {
			t.Fatalf("read: %v", err)
		}
		if out.Type != "token" {
			return sb.String(), out
		}
		sb.WriteString(out.Content)
	}
}

func TestChatWS_StreamsTokensThenDone(t *testing.T) {
	model := &fakeModel{chunks: []string{"Title: ", "Blue ", "Guitar"}}
	srv := httptest.NewServer(newRouter(newTestHandler(model, &fakeGenerator{})))
	defer srv.Close()
	conn := dialChatWS(t, srv)
	defer conn.Close()

	if err := conn.WriteJSON(map[string]interface{}{
		"type":     "chat",
		"messages": []map[string]string{{"role": "user", "content": "Cubism"}},
	}); err != nil {
		t.Fatal(err)
	}

	text, last := readUntilEnd(t, conn)
	if last.Type != "done" {
		t.Fatalf("expected done, got %+v", last)
	}
	if text != "Title: Blue Guitar" {
		t.Errorf("tokens %q", text)
	}

	// The connection stays usable for another turn.
	if err := conn.WriteJSON(map[string]interface{}{"type": "chat", "messages": []map[string]string{{"role": "user", "content": "Fauvism"}}}); err != nil {
		t.Fatal(err)
	}
	if _, last := readUntilEnd(t, conn); last.Type != "done" {
		t.Errorf("second turn ended with %+v", last)
	}
	if model.callCount() != 2 {
		t.Errorf("backend calls %d", model.callCount())
	}
}

func TestChatWS_Errors(t *testing.T) {
	model := &fakeModel{chunks: []string{"partial"}, err: errors.New("backend down")}
	srv := httptest.NewServer(newRouter(newTestHandler(model, &fakeGenerator{})))
	defer srv.Close()
	conn := dialChatWS(t, srv)
	defer conn.Close()

	tests := []struct {
		name    string
		msg     string
		wantErr string
	}{
		{"invalid JSON", `{"type":`, "invalid JSON"},
		{"wrong type", `{"type":"call"}`, "expected type: chat"},
		{"empty messages", `{"type":"chat","messages":[]}`, "messages is required"},
	}
	for _, tt := range tests {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(tt.msg)); err != nil {
			t.Fatal(err)
		}
		_, last := readUntilEnd(t, conn)
		if last.Type != "error" || !strings.Contains(last.Error, tt.wantErr) {
			t.Errorf("%s: got %+v", tt.name, last)
		}
	}
	if model.callCount() != 0 {
		t.Errorf("backend called for invalid input")
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"chat","messages":[{"role":"user","content":"Cubism"}]}`)); err != nil {
		t.Fatal(err)
	}
	text, last := readUntilEnd(t, conn)
	if text != "partial" || last.Type != "error" {
		t.Errorf("mid-stream failure: text %q, last %+v", text, last)
	}
}
