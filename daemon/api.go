/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/facebook/monoclock/store"
	"github.com/facebook/monoclock/timebase"
)

// Status is what /api/status reports
type Status struct {
	Source        string  `json:"source"`
	RatioNumer    uint32  `json:"ratio_numer"`
	RatioDenom    uint32  `json:"ratio_denom"`
	Factor        float64 `json:"factor"`
	MonoUS        int64   `json:"mono_us"`
	WallNS        int64   `json:"wall_ns"`
	DriftPPM      float64 `json:"drift_ppm"`
	ReadLatencyNS float64 `json:"read_latency_ns"`
	UptimeSec     int64   `json:"uptime_sec"`
}

// APIServer exposes daemon state and recorded sessions over HTTP,
// plus a websocket stream of live samples
type APIServer struct {
	daemon     *Daemon
	manager    *store.Manager
	hub        *hub
	httpServer *http.Server
}

// NewAPIServer creates the API server on the given port.
// manager may be nil, session endpoints then report 404.
func NewAPIServer(d *Daemon, manager *store.Manager, port int) *APIServer {
	s := &APIServer{
		daemon:  d,
		manager: manager,
		hub:     newHub(),
	}
	r := mux.NewRouter()
	r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions", s.handleSessions).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions/{id}", s.handleSession).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions/{id}", s.handleDeleteSession).Methods(http.MethodDelete)
	r.HandleFunc("/api/sessions/{id}/samples", s.handleSamples).Methods(http.MethodGet)
	r.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(s.hub, w, r)
	})
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: corsMiddleware(r),
	}
	return s
}

// Start runs the websocket hub and the http server, returning nil on graceful Stop
func (s *APIServer) Start() error {
	go s.hub.run()
	log.Infof("Starting API server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the http server down
func (s *APIServer) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// PublishSample implements SamplePublisher
func (s *APIServer) PublishSample(sample *store.Sample) {
	data, err := json.Marshal(sample)
	if err != nil {
		log.Errorf("failed to marshal sample: %v", err)
		return
	}
	s.hub.broadcastData(data)
}

func (s *APIServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	ratio, factor := timebase.Calibration()
	status := &Status{
		Source:     timebase.SourceName(),
		RatioNumer: ratio.Numer,
		RatioDenom: ratio.Denom,
		Factor:     factor,
		UptimeSec:  int64(time.Since(procStartTime).Seconds()),
	}
	if dp := s.daemon.state.lastDataPoint(); dp != nil {
		status.MonoUS = dp.MonoUS
		status.WallNS = dp.WallNS
		status.DriftPPM = dp.DriftPPM
		status.ReadLatencyNS = dp.ReadLatencyNS
	}
	writeJSON(w, status)
}

func (s *APIServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	if s.manager == nil {
		http.Error(w, "session recording is disabled", http.StatusNotFound)
		return
	}
	sessions, err := s.manager.ListSessions(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, sessions)
}

func (s *APIServer) handleSession(w http.ResponseWriter, r *http.Request) {
	if s.manager == nil {
		http.Error(w, "session recording is disabled", http.StatusNotFound)
		return
	}
	session, err := s.manager.GetSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, session)
}

func (s *APIServer) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if s.manager == nil {
		http.Error(w, "session recording is disabled", http.StatusNotFound)
		return
	}
	if err := s.manager.DeleteSession(r.Context(), mux.Vars(r)["id"]); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *APIServer) handleSamples(w http.ResponseWriter, r *http.Request) {
	if s.manager == nil {
		http.Error(w, "session recording is disabled", http.StatusNotFound)
		return
	}
	sampleStore, err := s.manager.OpenSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	defer sampleStore.Close()

	filter := &store.Filter{}
	q := r.URL.Query()
	if v := q.Get("since"); v != "" {
		if ns, err := strconv.ParseInt(v, 10, 64); err == nil {
			filter.Since = &ns
		}
	}
	if v := q.Get("until"); v != "" {
		if ns, err := strconv.ParseInt(v, 10, 64); err == nil {
			filter.Until = &ns
		}
	}
	if v := q.Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			filter.Limit = limit
		}
	}
	if v := q.Get("offset"); v != "" {
		if offset, err := strconv.Atoi(v); err == nil {
			filter.Offset = offset
		}
	}

	samples, err := sampleStore.ReadSamples(r.Context(), filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, samples)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("Failed to reply: %v", err)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
