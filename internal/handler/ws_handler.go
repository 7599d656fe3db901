/*
Package handler provides the HTTP routing of the chat server.

This file contains HandleWebSocket, which upgrades the request and runs the session until
the connection ends.
*/
package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"originchats/internal/app/chat"
	"originchats/internal/pkg/logx"
)

// HandleWebSocket upgrades the request and serves the session on the calling goroutine.
func HandleWebSocket(upgrader websocket.Upgrader, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		srv := deps.Server
		sess := chat.NewSession(conn, r.RemoteAddr, srv.Heartbeat())

		go sess.WritePump()

		srv.Connect(r.Context(), sess)

		sess.ReadPump(r.Context(), srv)
	}
}
