package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/cospace/cospace-server/internal/auth"
	"github.com/cospace/cospace-server/internal/authz"
	"github.com/cospace/cospace-server/internal/config"
	"github.com/cospace/cospace-server/internal/core"
	"github.com/cospace/cospace-server/internal/log"
	"github.com/cospace/cospace-server/internal/proto"
	"github.com/cospace/cospace-server/internal/store"
	"github.com/cospace/cospace-server/internal/store/sqlite"
)

// outboundMsg mirrors proto.Outbound with raw data for test-side decoding.
type outboundMsg struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error,omitempty"`
}

type testServer struct {
	ts     *httptest.Server
	store  *sqlite.SQLiteStore
	jwtCfg *auth.Config
}

func startCollabServer(t *testing.T) *testServer {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := log.Nop()
	gate := authz.NewGate(authz.NewStoreOracle(st), time.Minute, logger)
	engine := core.NewEngine(gate, st, core.DefaultOptions(), logger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go engine.Run(ctx)

	jwtCfg := &auth.Config{
		Secret:   []byte("test-secret"),
		Issuer:   "cospace",
		Audience: "cospace",
	}

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.JWT.Secret = "test-secret"

	server := NewServer(engine, gate, st, jwtCfg, &cfg, logger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testServer{ts: ts, store: st, jwtCfg: jwtCfg}
}

// grant records a room role for a user.
func (s *testServer) grant(t *testing.T, userID, roomID, role string) {
	t.Helper()
	err := s.store.UpsertRoomGrant(context.Background(), &store.RoomGrant{
		RoomID: roomID,
		UserID: userID,
		Role:   role,
	})
	if err != nil {
		t.Fatalf("grant %s/%s: %v", userID, roomID, err)
	}
}

func (s *testServer) token(t *testing.T, userID, displayName string) string {
	t.Helper()
	token, err := auth.GenerateToken(s.jwtCfg, userID, displayName, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

// dial opens a websocket connection authenticated as the given user.
func (s *testServer) dial(ctx context.Context, t *testing.T, userID, displayName string) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(s.ts.URL, "http", "ws", 1) + "/ws?token=" + s.token(t, userID, displayName)
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial as %s: %v", userID, err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func send(ctx context.Context, t *testing.T, conn *websocket.Conn, msgType string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s data: %v", msgType, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: msgType, Data: payload}); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

// mustRead reads outbound messages until one of the wanted type arrives.
func mustRead(ctx context.Context, t *testing.T, conn *websocket.Conn, wantType string) outboundMsg {
	t.Helper()

	for {
		var msg outboundMsg
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			t.Fatalf("read waiting for %s: %v", wantType, err)
		}
		if msg.Type == wantType {
			return msg
		}
	}
}

func decodeData(t *testing.T, msg outboundMsg, v any) {
	t.Helper()
	if err := json.Unmarshal(msg.Data, v); err != nil {
		t.Fatalf("unmarshal %s data: %v", msg.Type, err)
	}
}
