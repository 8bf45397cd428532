// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"bytes"
	"log/slog"
	"net/http"

	"github.com/NVIDIA/kstat-exporter/pkg/errors"
	"github.com/NVIDIA/kstat-exporter/pkg/serializer"
)

const (
	routeIndex       = "/"
	routeMetrics     = "/metrics"
	routeMetricsJSON = "/metrics.json"
	routeHealth      = "/health"
	routeReady       = "/ready"

	indexBody = "kstat-exporter: /metrics\n"
)

func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	// Default handler, also serves 404 for unknown paths
	mux.HandleFunc(routeIndex, s.handleIndex)

	// Scrape endpoints behind the full access gate
	mux.HandleFunc(routeMetrics, s.metricsGate(s.handleMetrics(serializer.FormatText)))
	mux.HandleFunc(routeMetricsJSON, s.metricsGate(s.handleMetrics(serializer.FormatJSON)))

	// System endpoints, address-restricted only
	mux.HandleFunc(routeHealth, s.addressGate(s.handleHealth))
	mux.HandleFunc(routeReady, s.addressGate(s.handleReady))

	return s.withMiddleware(mux)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != routeIndex {
		s.handleNotFound(w, r)
		return
	}
	if !allowedMethod(w, r) {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write([]byte(indexBody))
	}
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	if s.app.Log404Requests {
		slog.Warn("not found",
			"remote", r.RemoteAddr,
			"method", r.Method,
			"path", r.URL.Path,
		)
	}
	WriteError(w, r, http.StatusNotFound, errors.ErrCodeNotFound, "Not Found", false,
		map[string]any{"path": r.URL.Path})
}

// handleMetrics collects a fresh snapshot per request and renders it in
// format. Datasource failures are logged by the collector and only
// shrink the snapshot.
func (s *Server) handleMetrics(format serializer.Format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowedMethod(w, r) {
			return
		}

		snap, _ := s.source.Collect(r.Context())

		var opts []serializer.WriterOption
		if s.gatherer != nil {
			opts = append(opts, serializer.WithGatherer(s.gatherer))
		}

		// Encode first so an encoding error can still become a 500
		buf := &bytes.Buffer{}
		if err := serializer.NewWriter(format, buf, opts...).Serialize(r.Context(), snap); err != nil {
			slog.Error("failed to encode snapshot", "error", err, "format", format)
			WriteError(w, r, http.StatusInternalServerError, errors.ErrCodeInternal,
				"failed to encode metrics", true, nil)
			return
		}

		w.Header().Set("Content-Type", format.ContentType())
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return
		}
		if _, err := w.Write(buf.Bytes()); err != nil {
			slog.Warn("response write failed", "error", err)
		}
	}
}

// allowedMethod rejects everything but GET and HEAD with 405.
func allowedMethod(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return true
	}
	w.Header().Set("Allow", "GET, HEAD")
	WriteError(w, r, http.StatusMethodNotAllowed, errors.ErrCodeMethodNotAllowed,
		"Method not allowed", false, map[string]any{"method": r.Method})
	return false
}
