// Package httpapi is the monitor's optional read-only HTTP/WS surface,
// adapted from the teacher's internal/server (Server/Hub pair over
// gorilla/mux + gorilla/websocket): a GET snapshot endpoint and a
// websocket stream pushing a fresh snapshot whenever the scheduler's
// watchdog publishes an events.EventSnapshot. It accepts no commands, so
// it cannot be used to bypass the C8 RPC contract's start/status/wait/
// cleanup shape (spec §6) — this is purely an observability surface.
package httpapi

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/omc/teamctl/internal/events"
	"github.com/omc/teamctl/internal/monitor"
)

// SnapshotFunc produces the current snapshot for a team, on demand.
type SnapshotFunc func(teamName string) monitor.Snapshot

// Server is a thin HTTP server exposing one team's snapshot over a plain
// GET and over a websocket stream.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	hub        *Hub

	teamName string
	snapshot SnapshotFunc
	bus      *events.Bus
}

// New builds a Server for teamName. snapshot is called fresh on every GET
// and on every websocket connect; bus, if non-nil, is subscribed to so
// every EventSnapshot published by the scheduler's watchdog is forwarded
// to connected websocket clients.
func New(addr, teamName string, snapshot SnapshotFunc, bus *events.Bus) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		hub:      NewHub(),
		teamName: teamName,
		snapshot: snapshot,
		bus:      bus,
	}
	s.router.HandleFunc("/team/{name}/snapshot", s.handleSnapshot).Methods(http.MethodGet)
	s.router.HandleFunc("/team/{name}/stream", s.handleStream)
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}

	go s.hub.Run()
	if bus != nil {
		go s.forwardEvents()
	}
	return s
}

// ListenAndServe starts serving; it blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the HTTP server.
func (s *Server) Shutdown() error {
	return s.httpServer.Close()
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if name != s.teamName {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.snapshot(name)); err != nil {
		log.Printf("[httpapi] encode snapshot: %v", err)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if name != s.teamName {
		http.NotFound(w, r)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[httpapi] upgrade: %v", err)
		return
	}
	client := &Client{hub: s.hub, conn: conn, send: make(chan []byte, WebSocketBufferSize)}
	s.hub.Register(client)
	go client.writePump()

	client.SendJSON(map[string]interface{}{"type": "snapshot", "snapshot": s.snapshot(name)})
}

// forwardEvents drains the bus's "all" subscription and, on every
// EventSnapshot, pushes a fresh snapshot to connected clients. Other
// event types are forwarded as lightweight change notices so a connected
// dashboard can decide whether to re-fetch.
func (s *Server) forwardEvents() {
	ch := s.bus.Subscribe("all", nil)
	defer s.bus.Unsubscribe("all", ch)

	for ev := range ch {
		switch ev.Type {
		case events.EventSnapshot:
			s.hub.BroadcastJSON(map[string]interface{}{
				"type":     "snapshot",
				"snapshot": s.snapshot(s.teamName),
			})
		default:
			s.hub.BroadcastJSON(map[string]interface{}{
				"type":  fmt.Sprintf("change:%s", ev.Type),
				"event": ev,
			})
		}
	}
}
