// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

//go:build !statsview

package statsview

import "github.com/pkg/errors"

// ErrUnavailable is returned by Start when the server is not compiled in.
var ErrUnavailable = errors.New("statsview: not compiled in, rebuild with -tags statsview")

// Server is a running statistics server.
//
type Server struct {
	addr string
}

// Start returns ErrUnavailable.
//
func Start(addr string) (*Server, error) {
	return nil, errors.Wrapf(ErrUnavailable, "listen on %q", addr)
}

// URL returns the address of the statistics page.
func (s *Server) URL() string { return pageURL(s.addr) }

// Stop does nothing.
func (s *Server) Stop() error { return nil }

// Available reports whether the statistics server is compiled in.
func Available() bool { return false }
