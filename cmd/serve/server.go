package serve

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ValentinKolb/itemstore/lib/store"
	"github.com/ValentinKolb/itemstore/lib/store/scanner"
	"github.com/ValentinKolb/itemstore/lib/store/txn"
	vm "github.com/VictoriaMetrics/metrics"
)

// itemLink is the handle of a persisted item
type itemLink struct {
	id       uint64
	streamID uint64
}

func (l *itemLink) ID() uint64 { return l.id }

func newItemLink(item store.ItemRecord) store.Link {
	return &itemLink{id: item.ID, streamID: item.StreamID}
}

// server exposes a running store over http
type server struct {
	controller *store.Controller
	expiry     *scanner.Schedule
	delivery   *scanner.Schedule
}

// deliver is called by the delivery delay scanner for every item that became deliverable
func (s *server) deliver(link store.Link) {
	log.Debugf("item %d is deliverable", link.ID())
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /transactions", s.handleListTransactions)
	mux.HandleFunc("POST /transactions/{xid}/commit", s.handleResolve(true))
	mux.HandleFunc("POST /transactions/{xid}/rollback", s.handleResolve(false))
	mux.HandleFunc("POST /items/{id}/expire", s.handleSchedule(s.expiry))
	mux.HandleFunc("POST /items/{id}/deliver", s.handleSchedule(s.delivery))
	return mux
}

func (s *server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	s.controller.WriteMetrics(w)
	vm.WritePrometheus(w, true)
}

type healthResponse struct {
	State    string   `json:"state"`
	Health   string   `json:"health"`
	Entries  *int     `json:"entries,omitempty"`
	Failures []string `json:"failures,omitempty"`
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	c := s.controller
	resp := healthResponse{
		State:  c.State().String(),
		Health: c.Health().String(),
	}
	if size, ok := c.IndexSize(); ok {
		resp.Entries = &size
	}
	for _, err := range c.StartupFailures() {
		resp.Failures = append(resp.Failures, err.Error())
	}

	status := http.StatusOK
	if c.State() != store.StateStarted {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *server) handleListTransactions(w http.ResponseWriter, _ *http.Request) {
	inDoubt := s.controller.ListInDoubtTransactions()
	if inDoubt == nil {
		inDoubt = []string{}
	}
	writeJSON(w, http.StatusOK, inDoubt)
}

func (s *server) handleResolve(commit bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("xid")

		var err error
		if commit {
			err = s.controller.CommitPreparedTransaction(id)
		} else {
			err = s.controller.RollbackPreparedTransaction(id)
		}

		switch {
		case err == nil:
			w.WriteHeader(http.StatusNoContent)
		case store.IsCode(err, store.RetCInvalidTransactionID):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, txn.ErrUnknownTransaction):
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// handleSchedule schedules an item for the expiry or delivery scanner.
// The deadline is given as a duration in the "after" query parameter.
func (s *server) handleSchedule(schedule *scanner.Schedule) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r.PathValue("id"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		after, err := time.ParseDuration(r.URL.Query().Get("after"))
		if err != nil {
			http.Error(w, "invalid duration in parameter 'after'", http.StatusBadRequest)
			return
		}
		if _, ok, err := s.controller.FindByID(id); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		} else if !ok {
			http.Error(w, "item not found", http.StatusNotFound)
			return
		}
		schedule.Add(id, time.Now().Add(after))
		w.WriteHeader(http.StatusAccepted)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warningf("failed to write response: %v", err)
	}
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid item id %q", s)
	}
	return id, nil
}
