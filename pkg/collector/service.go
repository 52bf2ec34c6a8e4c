package collector

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/NotCoffee418/weather_telemetry/pkg/aggregator"
	"github.com/NotCoffee418/weather_telemetry/pkg/livefeed"
	"github.com/NotCoffee418/weather_telemetry/pkg/readingdb"
	"github.com/NotCoffee418/weather_telemetry/pkg/types"
	"github.com/gorilla/mux"
)

const (
	maxBodyBytes   = 64 << 10
	defaultHistory = 60
	maxHistory     = 10000
	defaultHours   = 24
	maxHours       = 24 * 400
)

func NewServer(store *Store, db *readingdb.DB, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store: store,
		db:    db,
		hub:   livefeed.NewHub(store.LatestOrNil, logger),
		log:   logger,
	}
}

func (s *Server) Hub() *livefeed.Hub {
	return s.hub
}

// Router configures all collector routes
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/", s.statusHandler).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/{id}", s.getLatestHandler).Methods("GET")
	api.HandleFunc("/{id}", s.postReadingHandler).Methods("POST")
	api.HandleFunc("/{id}/history", s.historyHandler).Methods("GET")
	api.HandleFunc("/{id}/hourly", s.hourlyHandler).Methods("GET")

	r.HandleFunc("/ws/{id}", func(w http.ResponseWriter, r *http.Request) {
		s.hub.ServeWS(w, r, mux.Vars(r)["id"])
	}).Methods("GET")

	return r
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Weather Telemetry Collector",
		"status":  "running",
	})
}

// getLatestHandler returns the newest stored reading or 404
func (s *Server) getLatestHandler(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["id"]
	if err := ValidateDeviceID(deviceID); err != nil {
		http.NotFound(w, r)
		return
	}

	reading, err := s.store.Latest(deviceID)
	if errors.Is(err, ErrNoReading) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.log.Error("read latest reading", "device", deviceID, "error", err)
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(reading.ToJsonBytes())
}

// postReadingHandler validates and stores a reading. Any schema violation is a 404.
func (s *Server) postReadingHandler(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["id"]

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.log.Warn("rejected reading", "device", deviceID, "error", err)
		http.NotFound(w, r)
		return
	}

	reading, err := ValidatePayload(deviceID, body)
	if err != nil {
		s.log.Warn("rejected reading", "device", deviceID, "error", err)
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	if err := s.store.Save(deviceID, reading); err != nil {
		s.log.Error("store reading", "device", deviceID, "error", err)
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}

	// the CSV store is the record of truth; history and live feed are best effort
	if s.db != nil {
		if err := s.db.InsertReading(deviceID, reading); err != nil {
			s.log.Warn("history insert failed", "device", deviceID, "error", err)
		}
	}
	s.hub.Broadcast(deviceID, reading)

	s.log.Debug("stored reading", "device", deviceID, "timestamp", reading.Timestamp.Unix())
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "Updated")
}

func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["id"]
	if ValidateDeviceID(deviceID) != nil || s.db == nil {
		http.NotFound(w, r)
		return
	}

	var readings []*types.Reading
	var err error
	if r.URL.Query().Has("since") {
		// ?since=&until= select a window in unix seconds, until defaults to now
		since, sinceOK := unixParam(r, "since", time.Time{})
		until, untilOK := unixParam(r, "until", time.Now().Add(time.Second))
		if !sinceOK || !untilOK || !since.Before(until) {
			http.Error(w, "since and until must be unix seconds with since < until", http.StatusBadRequest)
			return
		}
		readings, err = s.db.ReadingsBetween(deviceID, since, until)
	} else {
		n, ok := intParam(r, "n", defaultHistory, maxHistory)
		if !ok {
			http.Error(w, "n must be a positive integer", http.StatusBadRequest)
			return
		}
		readings, err = s.db.LatestReadings(deviceID, n)
	}
	if err != nil {
		s.log.Error("query history", "device", deviceID, "error", err)
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte("["))
	for i, reading := range readings {
		if i > 0 {
			w.Write([]byte(","))
		}
		w.Write(reading.ToJsonBytes())
	}
	w.Write([]byte("]"))
}

func (s *Server) hourlyHandler(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["id"]
	if ValidateDeviceID(deviceID) != nil || s.db == nil {
		http.NotFound(w, r)
		return
	}

	hours, ok := intParam(r, "hours", defaultHours, maxHours)
	if !ok {
		http.Error(w, "hours must be a positive integer", http.StatusBadRequest)
		return
	}

	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	aggregates, err := s.db.HourlyAggregates(deviceID, since)
	if err != nil {
		s.log.Error("query hourly aggregates", "device", deviceID, "error", err)
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	if aggregates == nil {
		aggregates = []readingdb.HourlyAggregate{}
	}
	writeJSON(w, http.StatusOK, aggregates)
}

// RunAggregator aggregates the history every interval until ctx ends.
func (s *Server) RunAggregator(ctx context.Context, interval, retention time.Duration) {
	if s.db == nil || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := aggregator.AggregateAndCleanup(s.db, now, retention); err != nil {
				s.log.Error("aggregation failed", "error", err)
			}
		}
	}
}

func intParam(r *http.Request, name string, def, max int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, false
	}
	if v > max {
		v = max
	}
	return v, true
}

func unixParam(r *http.Request, name string, def time.Time) (time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, !def.IsZero()
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return time.Time{}, false
	}
	return time.Unix(v, 0), true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
