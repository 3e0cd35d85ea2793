// Copyright 2025 CloudWeGo Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build linux

// Package uringloop is an io_uring based completion reactor.
//
// Every I/O operation is queued as one submission entry on the reactor's ring
// and represented by an Op. A Task suspends on an Op until the reactor drains
// the matching completion and hands control back to it, so code written as
// straight-line calls runs as cooperatively scheduled asynchronous I/O:
//
//	r, _ := uringloop.New(256)
//	defer r.Close()
//	n, err := uringloop.BlockOn(r, func() (int, error) {
//		f, err := uringloop.Open(r, "data", unix.O_RDONLY, 0)
//		if err != nil {
//			return 0, err
//		}
//		defer f.Close()
//		return f.Read(buf, 0)
//	})
//
// A Reactor, and everything bound to it, must be driven by one goroutine at a time.
// Tasks run on their own goroutines but only while that driver is parked, so no
// two pieces of code ever touch a reactor concurrently.
//
// Two paths discard results on purpose: the error of a detached Task and the result
// of a fire-and-forget close issued by Release or by the finalizer of a leaked handle.
// WithOnDetachedError observes the former.
package uringloop

import (
	"log"
	"os"

	"github.com/cloudwego/uringloop/internal/runner"
)

var logger = log.New(os.Stderr, "", log.LstdFlags)

// Configure the process wide behaviors of uringloop.
// It should be called in init(), before any reactor is created.
func Configure(config Config) (err error) {
	if config.Runner != nil {
		runner.RunTask = config.Runner
	}
	if config.LoggerOutput != nil {
		logger = log.New(config.LoggerOutput, "", log.LstdFlags)
	}
	return nil
}
