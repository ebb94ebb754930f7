package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/tilt_computer/internal/sampler"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

const streamBuffer = 8

// Hub keeps the latest report for the HTTP API and fans reports out to
// websocket clients. It is a sampler.Sink.
type Hub struct {
	mu       sync.RWMutex
	last     sampler.Report
	haveData bool
	clients  map[chan sampler.Report]struct{}

	gatherer prometheus.Gatherer
	regs     *RegisterDebugger
	now      func() time.Time
}

// NewHub builds a hub. gatherer and regs may be nil, which disables
// /metrics and /ws/registers respectively.
func NewHub(gatherer prometheus.Gatherer, regs *RegisterDebugger) *Hub {
	return &Hub{
		clients:  make(map[chan sampler.Report]struct{}),
		gatherer: gatherer,
		regs:     regs,
		now:      time.Now,
	}
}

// Publish stores r and forwards it to every stream client. Slow clients
// miss reports rather than stall the sample loop.
func (h *Hub) Publish(r sampler.Report) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = r
	h.haveData = true
	for ch := range h.clients {
		select {
		case ch <- r:
		default:
		}
	}
	return nil
}

func (h *Hub) latest() (sampler.Report, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.last, h.haveData
}

func (h *Hub) subscribe() chan sampler.Report {
	ch := make(chan sampler.Report, streamBuffer)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) unsubscribe(ch chan sampler.Report) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

// reportView is the /api/report payload.
type reportView struct {
	sampler.Report
	Age string `json:"age"`
}

// Handler returns the HTTP routes.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()

	// latest fused pose; 503 until the estimator has been seeded
	mux.HandleFunc("/api/orientation", func(w http.ResponseWriter, r *http.Request) {
		rep, ok := h.latest()
		if !ok || !rep.Tracking {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, rep.Pose)
	})

	mux.HandleFunc("/api/report", func(w http.ResponseWriter, r *http.Request) {
		rep, ok := h.latest()
		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, reportView{Report: rep, Age: humanize.RelTime(rep.Time, h.now(), "ago", "from now")})
	})

	mux.HandleFunc("/ws", h.handleStream)

	if h.regs != nil {
		mux.HandleFunc("/ws/registers", h.regs.HandleWS)
	}
	if h.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithField("component", "web").Errorf("json encode error: %v", err)
	}
}

func (h *Hub) handleStream(w http.ResponseWriter, r *http.Request) {
	// Subscribe before the upgrade completes so no report published after
	// the client sees the handshake is lost.
	ch := h.subscribe()
	defer h.unsubscribe(ch)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithField("component", "web").Warnf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	// Reader goroutine only notices the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if rep, ok := h.latest(); ok {
		if err := conn.WriteJSON(rep); err != nil {
			return
		}
	}

	for {
		select {
		case <-gone:
			return
		case rep := <-ch:
			if err := conn.WriteJSON(rep); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.WithField("component", "web").Debugf("stream write error: %v", err)
				}
				return
			}
		}
	}
}

// Serve runs the HTTP server on addr until ctx is done.
func (h *Hub) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: h.Handler()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithField("component", "web").Infof("web server listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
