package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aristath/synthbench/internal/events"
	"github.com/aristath/synthbench/internal/modules/ledger"
)

const (
	streamWriteTimeout = 10 * time.Second
	streamHeartbeat    = 30 * time.Second
)

// StreamHandler streams the progress events of one run over a websocket.
// Clients get every event published so far, then live events until the run
// finishes. Runs the bus no longer remembers are answered from the ledger
// with a single run_finished event.
type StreamHandler struct {
	bus   *events.Bus
	store RunStore
	log   zerolog.Logger
}

// NewStreamHandler creates a stream handler. bus and store may be nil.
func NewStreamHandler(bus *events.Bus, store RunStore, log zerolog.Logger) *StreamHandler {
	return &StreamHandler{
		bus:   bus,
		store: store,
		log:   log.With().Str("component", "run_stream").Logger(),
	}
}

// ServeHTTP handles GET /api/runs/{id}/stream requests (websocket).
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if h.bus != nil && h.bus.Known(id) {
		h.streamLive(w, r, id)
		return
	}

	if h.store != nil {
		run, err := h.store.GetRun(r.Context(), id)
		if err == nil {
			h.streamRecorded(w, r, run)
			return
		}
		if !errors.Is(err, ledger.ErrRunNotFound) {
			h.log.Error().Err(err).Str("run_id", id).Msg("Failed to look up run")
			http.Error(w, "failed to look up run", http.StatusInternalServerError)
			return
		}
	}

	http.Error(w, "run not found", http.StatusNotFound)
}

func (h *StreamHandler) accept(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	// CORS is open for the whole API; origins are not checked here either
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket handshake failed")
		return nil, err
	}
	return conn, nil
}

func (h *StreamHandler) streamLive(w http.ResponseWriter, r *http.Request, id string) {
	history, ch, cancel := h.bus.Subscribe(id)
	defer cancel()

	conn, err := h.accept(w, r)
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream ended unexpectedly")

	log := h.log.With().Str("run_id", id).Logger()
	log.Info().Int("replayed", len(history)).Msg("Client connected to run stream")

	// Reads are discarded; ctx ends when the client goes away
	ctx := conn.CloseRead(r.Context())

	for _, e := range history {
		if err := h.write(ctx, conn, e); err != nil {
			log.Debug().Err(err).Msg("Client disconnected from run stream")
			return
		}
	}

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Client disconnected from run stream")
			return

		case e, ok := <-ch:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "run finished")
				return
			}
			if err := h.write(ctx, conn, e); err != nil {
				log.Debug().Err(err).Msg("Client disconnected from run stream")
				return
			}

		case <-heartbeat.C:
			pingCtx, cancelPing := context.WithTimeout(ctx, streamWriteTimeout)
			err := conn.Ping(pingCtx)
			cancelPing()
			if err != nil {
				log.Debug().Err(err).Msg("Heartbeat failed")
				return
			}
		}
	}
}

func (h *StreamHandler) streamRecorded(w http.ResponseWriter, r *http.Request, run *ledger.Run) {
	conn, err := h.accept(w, r)
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream ended unexpectedly")

	e := events.NewEvent(run.ID, &events.RunFinishedData{
		Status:   run.Status,
		Error:    run.Error,
		Branches: len(run.Branches),
	})
	e.Timestamp = run.RecordedAt

	if err := h.write(r.Context(), conn, e); err != nil {
		h.log.Debug().Err(err).Str("run_id", run.ID).Msg("Client disconnected from run stream")
		return
	}
	conn.Close(websocket.StatusNormalClosure, "run finished")
}

func (h *StreamHandler) write(ctx context.Context, conn *websocket.Conn, e events.Event) error {
	ctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, e)
}
