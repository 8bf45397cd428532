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
	"crypto/subtle"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/NVIDIA/kstat-exporter/pkg/errors"
)

const bearerScheme = "Bearer"

// peerAddr returns the unmapped peer address of r.
func peerAddr(r *http.Request) (netip.Addr, bool) {
	if ap, err := netip.ParseAddrPort(r.RemoteAddr); err == nil {
		return ap.Addr().Unmap(), true
	}
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

// addressAllowed applies allowed_metrics_cidrs. A peer whose address
// cannot be parsed is only allowed when no restriction is configured.
func (s *Server) addressAllowed(r *http.Request) bool {
	addr, ok := peerAddr(r)
	if !ok {
		return len(s.app.AllowedMetricsCIDRs) == 0
	}
	return s.app.AddressAllowed(addr)
}

// tokenValid checks the bearer token in constant time.
func (s *Server) tokenValid(r *http.Request) bool {
	if !s.app.AuthEnabled() {
		return true
	}
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, bearerScheme) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(s.app.AuthToken)) == 1
}

// metricsGate counts every metrics request and applies the address and
// token checks, in that order.
func (s *Server) metricsGate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.source.RecordRequest()

		if !s.addressAllowed(r) {
			s.source.RecordDenied()
			s.deny(w, r, http.StatusForbidden, errors.ErrCodeForbidden, "address not allowed")
			return
		}
		if !s.tokenValid(r) {
			s.source.RecordDenied()
			w.Header().Set("WWW-Authenticate", bearerScheme)
			s.deny(w, r, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "missing or invalid bearer token")
			return
		}

		next(w, r)
	}
}

// addressGate applies only the address check.
func (s *Server) addressGate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.addressAllowed(r) {
			s.deny(w, r, http.StatusForbidden, errors.ErrCodeForbidden, "address not allowed")
			return
		}
		next(w, r)
	}
}

func (s *Server) deny(w http.ResponseWriter, r *http.Request, status int, code errors.ErrorCode, reason string) {
	deniedRequests.WithLabelValues(string(code)).Inc()
	if s.app.LogDeniedRequests {
		slog.Warn("request denied",
			"remote", r.RemoteAddr,
			"method", r.Method,
			"path", r.URL.Path,
			"reason", reason,
		)
	}
	WriteError(w, r, status, code, "access denied", false, nil)
}
