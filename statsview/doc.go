// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package statsview serves graphs of the emulator's Go runtime statistics
// (heap, goroutines, GC pauses) over HTTP while a board runs. The server is
// compiled in only with the statsview build tag:
//
//	go build -tags statsview ./cmd/hwemu
//
// Without the tag, Start always fails and Available reports false.
//
package statsview

import "time"

// DefaultAddress is used by Start when no address is given.
const DefaultAddress = "127.0.0.1:18066"

// Path is the route of the graphs page on the server.
const Path = "/debug/statsview"

// bindWait is how long Start waits for a listen error before assuming the
// server is up.
const bindWait = 100 * time.Millisecond

func pageURL(addr string) string {
	return "http://" + addr + Path
}
