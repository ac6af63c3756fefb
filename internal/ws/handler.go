package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/DoyleJ11/frc-plan-sync/internal/remote"
	"github.com/DoyleJ11/frc-plan-sync/internal/types"
)

// Hooks lets the caller count connections without this package knowing about
// metrics.
type Hooks struct {
	OnOpen  func(remote.Collection)
	OnClose func(remote.Collection)
}

// Handler streams snapshots of one collection of one session.
func Handler(s remote.Store, log *zap.Logger, hooks Hooks) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		code := remote.NormalizeCode(r.URL.Query().Get("code"))
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}
		coll := remote.Collection(r.URL.Query().Get("collection"))
		if !coll.Subscribable() {
			http.Error(w, "unknown collection", http.StatusBadRequest)
			return
		}

		sub, err := s.Subscribe(r.Context(), code, coll)
		if errors.Is(err, remote.ErrSessionNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		if err != nil {
			log.Error("subscribe failed", zap.String("session", code), zap.Error(err))
			http.Error(w, "subscribe failed", http.StatusInternalServerError)
			return
		}
		defer sub.Close()

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// In dev ONLY, you can loosen origin checks:
			// OriginPatterns: []string{"http://localhost:*", "http://127.0.0.1:*"},
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		if hooks.OnOpen != nil {
			hooks.OnOpen(coll)
		}
		if hooks.OnClose != nil {
			defer hooks.OnClose(coll)
		}

		// Writer goroutine; the handler does not return before it does.
		writeCtx, writeCancel := context.WithCancel(r.Context())
		done := make(chan struct{})
		defer func() {
			writeCancel()
			sub.Close()
			<-done
		}()
		go func() {
			defer close(done)
			for snap := range sub.C {
				msg := types.ServerMessage{Type: types.MsgSnapshot, Snapshot: &snap}
				payload, err := json.Marshal(msg)
				if err != nil {
					log.Error("encode snapshot", zap.String("session", code), zap.String("collection", string(coll)), zap.Error(err))
					continue
				}
				ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
				err = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
				if err != nil {
					writeCancel()
					return
				}
			}
			// The store ended the feed; tell the client why and hang up.
			if err := sub.Err(); err != nil {
				log.Info("subscription ended", zap.String("session", code), zap.String("collection", string(coll)), zap.Error(err))
				conn.Close(websocket.StatusGoingAway, err.Error())
			}
		}()

		// Reader loop
		for {
			ctx, cancel := context.WithTimeout(writeCtx, 60*time.Second)
			_, data, err := conn.Read(ctx)
			cancel()
			if err != nil {
				// Clean close/going-away and timeouts all just end the stream.
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				_ = conn.Write(writeCtx, websocket.MessageText,
					[]byte(`{"type":"Error","error":"bad json"}`))
				continue
			}
			if cm.Type != types.MsgPing {
				_ = conn.Write(writeCtx, websocket.MessageText, []byte(`{"type":"Error","error":"unknown type"}`))
				continue
			}
			_ = conn.Write(writeCtx, websocket.MessageText, []byte(`{"type":"Pong"}`))
		}
	}
}
