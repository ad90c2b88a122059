// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package pprof serves the Go profiling endpoints on a localhost-only port,
// kept off the public router so profiles are never reachable through the
// gateway surface.
package pprof

import (
	"context"
	"net"
	"net/http"
	httppprof "net/http/pprof"
	"os"
	"strconv"
	"time"
)

const addr = "localhost:6060"

// Run starts the pprof server unless DISABLE_PPROF is set. The listener is
// bound before Run returns; serving stops when ctx is cancelled. Bind and
// serve failures are ignored: profiling is best-effort and must never take
// the gateway down.
func Run(ctx context.Context) {
	if disabled, _ := strconv.ParseBool(os.Getenv("DISABLE_PPROF")); disabled {
		return
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", httppprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", httppprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", httppprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", httppprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", httppprof.Trace)

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() { _ = srv.Serve(ln) }()
}
