/*
Copyright 2023 AmidaWare Inc.

Licensed under the Tactical RMM License Version 1.0 (the “License”).
You may only use the Licensed Software in accordance with the License.
A copy of the License is available at:

https://license.tacticalrmm.com

*/

package agent

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vpscope/vpsagent/agent/publisher"
	rmm "github.com/vpscope/vpsagent/shared"
)

const (
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Router serves the metrics query and the terminal websocket
func (a *Agent) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/system/metrics", a.handleMetrics)
	mux.HandleFunc("/terminal/ws", a.handleTerminal)
	mux.HandleFunc("/terminal/sessions", a.handleSessions)
	mux.Handle("/metrics", a.Instruments.Handler())
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (a *Agent) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	snap, err := a.Metrics.Get(r.Context())
	if err != nil {
		a.Logger.Errorln("handleMetrics():", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *Agent) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, a.Commands.Sessions())
	case http.MethodDelete:
		if err := a.Commands.Cancel(r.URL.Query().Get("id")); err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (a *Agent) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if len(a.AllowedOrigins) == 0 {
				return origin == "http://"+r.Host || origin == "https://"+r.Host
			}
			for _, o := range a.AllowedOrigins {
				if o == origin {
					return true
				}
			}
			a.Logger.Warnln("websocket origin rejected:", origin)
			return false
		},
	}
}

// handleTerminal reads {"command": ...} frames and streams each session's
// events back on the same connection. ?attach=<id> watches a live session
// instead.
func (a *Agent) handleTerminal(w http.ResponseWriter, r *http.Request) {
	up := a.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		a.Logger.Debugln("Upgrade():", err)
		return
	}
	defer conn.Close()

	sink := publisher.NewWSSink(conn)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	closed := make(chan struct{})
	defer close(closed)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-closed:
				return
			case <-ticker.C:
				if err := sink.Ping(); err != nil {
					return
				}
			}
		}
	}()

	if id := r.URL.Query().Get("attach"); id != "" {
		a.attach(id, sink, conn)
		return
	}

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			a.Logger.Debugln("terminal client disconnected:", err)
			return
		}

		var req rmm.CmdRequest
		if err := json.Unmarshal(message, &req); err != nil {
			a.Logger.Debugln("invalid terminal message:", err)
			msg := "Error: invalid request"
			sink.WriteJSON(rmm.CmdOutput{Output: &msg})
			continue
		}

		id, err := a.Commands.Start(req.Command, a.Instruments.Sink(sink))
		a.Instruments.SessionStarted(err)
		a.Logger.Debugf("terminal session %s: %q %v", id, req.Command, err)
	}
}

func (a *Agent) attach(id string, sink *publisher.WSSink, conn *websocket.Conn) {
	events, cancel, err := a.Commands.Publisher().Attach(id)
	if err != nil {
		msg := "Error: " + err.Error()
		sink.WriteJSON(rmm.CmdOutput{Output: &msg})
		return
	}
	defer cancel()

	// detach as soon as the client goes away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := sink.Deliver(ev); err != nil {
				return
			}
		}
	}
}
