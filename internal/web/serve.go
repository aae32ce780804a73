// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chatgate Contributors

package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/samber/oops"
	"golang.org/x/sync/errgroup"
)

// Timeouts bounds a served HTTP server.
type Timeouts struct {
	ReadHeader time.Duration
	Read       time.Duration
	Write      time.Duration
	Shutdown   time.Duration
}

// DefaultTimeouts returns the timeouts used when none are configured.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		ReadHeader: 5 * time.Second,
		Read:       10 * time.Second,
		Write:      30 * time.Second,
		Shutdown:   10 * time.Second,
	}
}

// Listen creates a TCP listener on addr. "127.0.0.1:0" picks a free port.
func Listen(ctx context.Context, addr string) (net.Listener, error) {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, oops.Code("LISTEN_FAILED").With("addr", addr).Wrap(err)
	}
	return listener, nil
}

// Serve runs srv on listener inside grp and shuts it down gracefully once
// ctx is canceled.
func Serve(ctx context.Context, grp *errgroup.Group, srv *http.Server, listener net.Listener, t Timeouts) {
	srv.ReadHeaderTimeout = t.ReadHeader
	srv.ReadTimeout = t.Read
	srv.WriteTimeout = t.Write

	grp.Go(func() error {
		err := srv.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return oops.Code("SERVE_FAILED").With("addr", listener.Addr().String()).Wrap(err)
	})

	grp.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.Shutdown)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return oops.With("operation", "shutdown http server").Wrap(err)
		}
		return nil
	})
}
