package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"stockdash/internal/dashboard"
	"stockdash/internal/proxy"
)

const (
	wsReadTimeout  = 90 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsPingEvery    = 45 * time.Second
)

// clientMessage is a dashboard command sent by the browser.
type clientMessage struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type serverMessage struct {
	Type     string              `json:"type"`
	Snapshot *dashboard.Snapshot `json:"snapshot,omitempty"`
}

// handleDashboard runs one dashboard session for the lifetime of the connection.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.String("request_id", RequestIDFrom(r.Context())), zap.Error(err))
		return
	}
	s.track(conn)
	defer func() {
		s.untrack(conn)
		_ = conn.Close()
	}()

	log := s.logger.With(zap.String("request_id", RequestIDFrom(r.Context())), zap.String("remote", r.RemoteAddr))
	sess := dashboard.NewSession(proxy.Local{S: s.svc}, s.cfg.Session, dashboard.WithLogger(log.Named("session")))
	defer sess.Close()

	changed := make(chan struct{}, 1)
	unsubscribe := sess.Subscribe(func(dashboard.Snapshot) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	done := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ping := time.NewTicker(wsPingEvery)
		defer ping.Stop()
		for {
			select {
			case <-changed:
				// the snapshot is taken at write time so bursts collapse into the latest state
				snap := sess.Snapshot()
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteJSON(serverMessage{Type: "snapshot", Snapshot: &snap}); err != nil {
					log.Debug("websocket write failed", zap.Error(err))
					_ = conn.Close()
					return
				}
			case <-ping.C:
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					_ = conn.Close()
					return
				}
			case <-done:
				return
			}
		}
	}()

	sess.Start()
	log.Info("dashboard session opened")

	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		if mt != websocket.TextMessage {
			continue
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Debug("bad dashboard message", zap.Error(err))
			continue
		}
		dispatch(sess, msg, log)
	}

	close(done)
	<-writerDone
	log.Info("dashboard session closed")
}

func dispatch(sess *dashboard.Session, msg clientMessage, log *zap.Logger) {
	switch strings.ToLower(msg.Type) {
	case "submit":
		sess.Submit(msg.Value)
	case "query":
		sess.TypeQuery(msg.Value)
	case "pick":
		sess.Pick(msg.Value)
	case "clear":
		sess.ClearSearch()
	case "refresh":
		sess.FullRefresh()
	case "view":
		switch dashboard.View(strings.ToLower(msg.Value)) {
		case dashboard.ViewTable:
			sess.SetView(dashboard.ViewTable)
		case dashboard.ViewChart:
			sess.SetView(dashboard.ViewChart)
		default:
			sess.ToggleView()
		}
	case "chart":
		if m, ok := dashboard.ParseChartMode(msg.Value); ok {
			sess.SetChartMode(m)
		}
	case "select":
		sess.SelectSymbol(msg.Value)
	case "history":
		sess.LoadHistory()
	default:
		log.Debug("unknown dashboard message", zap.String("type", msg.Type))
	}
}
