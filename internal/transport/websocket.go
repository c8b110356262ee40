// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	applog "spectrum/internal/log"

	"github.com/gorilla/websocket"
)

const (
	// WebSocketPath is the endpoint painters connect to.
	WebSocketPath = "/ws"

	broadcastQueue = 8
	writeWait      = 250 * time.Millisecond
)

// WebSocketTransport broadcasts every frame as JSON to all connected clients.
// Frames are queued; when the queue is full the newest frame is dropped so
// the render goroutine never waits on the network.
type WebSocketTransport struct {
	listener  net.Listener
	server    *http.Server
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]struct{}
	clientsMu sync.Mutex        // Never held across a network write
	count     atomic.Int32      // len(clients), readable without the lock
	targets   []*websocket.Conn // Broadcast snapshot, reused
	broadcast chan any
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	dropped   atomic.Uint64
}

// NewWebSocketTransport listens on addr ("host:port", port 0 picks a free
// one) and starts serving WebSocketPath.
func NewWebSocketTransport(addr string) (*WebSocketTransport, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	wst := &WebSocketTransport{
		listener: ln,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients:   make(map[*websocket.Conn]struct{}),
		broadcast: make(chan any, broadcastQueue),
		done:      make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(WebSocketPath, wst.handleWebSocket)
	wst.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	wst.wg.Add(2)
	go func() {
		defer wst.wg.Done()
		applog.Infof("WebSocketTransport: Serving ws://%s%s", ln.Addr(), WebSocketPath)
		if err := wst.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			applog.Errorf("WebSocketTransport: Server error: %v", err)
		}
	}()
	go wst.handleBroadcasts()

	return wst, nil
}

// Addr returns the address the server is listening on.
func (wst *WebSocketTransport) Addr() string {
	return wst.listener.Addr().String()
}

func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Warnf("WebSocketTransport: Upgrade error: %v", err)
		return
	}

	wst.clientsMu.Lock()
	select {
	case <-wst.done:
		wst.clientsMu.Unlock()
		conn.Close()
		return
	default:
	}
	wst.clients[conn] = struct{}{}
	total := wst.count.Add(1)
	wst.wg.Add(1)
	wst.clientsMu.Unlock()
	applog.Infof("WebSocketTransport: Client %s connected, total: %d", conn.RemoteAddr(), total)

	// Clients only listen; reading detects the disconnect.
	go func() {
		defer wst.wg.Done()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		if wst.removeClient(conn) {
			applog.Infof("WebSocketTransport: Client disconnected, total: %d", wst.count.Load())
		}
	}()
}

// removeClient drops conn and reports whether it was still registered.
func (wst *WebSocketTransport) removeClient(conn *websocket.Conn) bool {
	wst.clientsMu.Lock()
	_, ok := wst.clients[conn]
	if ok {
		delete(wst.clients, conn)
		wst.count.Add(-1)
	}
	wst.clientsMu.Unlock()

	conn.Close()
	return ok
}

func (wst *WebSocketTransport) handleBroadcasts() {
	defer wst.wg.Done()
	for {
		select {
		case <-wst.done:
			return
		case data := <-wst.broadcast:
			wst.clientsMu.Lock()
			wst.targets = wst.targets[:0]
			for client := range wst.clients {
				wst.targets = append(wst.targets, client)
			}
			wst.clientsMu.Unlock()

			// This goroutine is the only writer, so the connections can be
			// written without the lock.
			for _, client := range wst.targets {
				client.SetWriteDeadline(time.Now().Add(writeWait))
				if err := client.WriteJSON(data); err != nil {
					applog.Warnf("WebSocketTransport: Error sending to %s: %v", client.RemoteAddr(), err)
					wst.removeClient(client)
				}
			}
			clear(wst.targets)
		}
	}
}

// Clients returns the number of connected clients.
func (wst *WebSocketTransport) Clients() int {
	return int(wst.count.Load())
}

// Dropped returns how many frames were discarded because the queue was full.
func (wst *WebSocketTransport) Dropped() uint64 {
	return wst.dropped.Load()
}

// Send queues data for broadcast. Nothing is queued while no client is
// connected.
func (wst *WebSocketTransport) Send(data any) error {
	select {
	case <-wst.done:
		return ErrClosed
	default:
	}
	if wst.Clients() == 0 {
		return nil
	}

	select {
	case wst.broadcast <- detach(data):
	default:
		wst.dropped.Add(1)
	}
	return nil
}

// Close shuts down the server, disconnects every client and waits for the
// transport's goroutines to exit.
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		applog.Infof("WebSocketTransport: Closing server")

		wst.clientsMu.Lock()
		close(wst.done)
		for client := range wst.clients {
			client.Close()
		}
		wst.clientsMu.Unlock()

		err = wst.server.Close()
		wst.wg.Wait()
	})
	return err
}

var _ Transport = (*WebSocketTransport)(nil)
