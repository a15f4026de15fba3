// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

//go:build statsview

package statsview

import (
	"net/http"
	"time"

	"github.com/db47h/hwemu/logger"
	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
	"github.com/pkg/errors"
)

// Server is a running statistics server.
//
type Server struct {
	addr string
	vm   *statsview.ViewManager
	errc chan error
}

// Start listens on addr, or DefaultAddress if addr is empty, and serves the
// statistics page until Stop is called. It fails if the address cannot be
// bound.
//
func Start(addr string) (*Server, error) {
	if addr == "" {
		addr = DefaultAddress
	}
	viewer.SetConfiguration(viewer.WithAddr(addr))
	s := &Server{addr: addr, vm: statsview.New(), errc: make(chan error, 1)}
	go s.serve()

	t := time.NewTimer(bindWait)
	defer t.Stop()
	select {
	case err := <-s.errc:
		return nil, errors.Wrapf(err, "statsview: listen on %s", addr)
	case <-t.C:
	}
	logger.Logf(logger.Allow, "statsview", "serving %s", s.URL())
	return s, nil
}

func (s *Server) serve() {
	err := s.vm.Start()
	if err == http.ErrServerClosed {
		err = nil
	}
	s.errc <- err
}

// URL returns the address of the statistics page.
//
func (s *Server) URL() string { return pageURL(s.addr) }

// Stop shuts the server down and returns the error it stopped with, if any.
//
func (s *Server) Stop() error {
	s.vm.Stop()
	err := <-s.errc
	logger.Logf(logger.Allow, "statsview", "stopped")
	return err
}

// Available reports whether the statistics server is compiled in.
func Available() bool { return true }
