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

// Command echoserver echoes every byte it receives back to the sender.
// One detached task serves each connection.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/bytedance/gopkg/lang/mcache"

	"github.com/cloudwego/uringloop"
)

const (
	ENTRIES     = 4096
	QUEUE_DEPTH = 256
	READ_SZ     = 8192
)

var (
	host = flag.String("host", "", "address to listen on")
	port = flag.Int("port", 8000, "port to listen on")
)

func main() {
	flag.Parse()

	r, err := uringloop.New(ENTRIES, uringloop.WithOnDetachedError(func(err error) {
		log.Printf("connection: %v", err)
	}))
	MustNil(err)
	defer r.Close()

	ln, err := uringloop.ListenConfig{Backlog: QUEUE_DEPTH}.Listen(r, *host, *port)
	MustNil(err)
	fmt.Printf("echoserver listening on %v\n", ln.Addr())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	uringloop.Go(r, func() error {
		defer ln.Release()
		for {
			conn, _, err := ln.Accept()
			if err != nil {
				return err
			}
			uringloop.Go(r, func() error {
				return serve(conn)
			})
		}
	})
	if err = r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}

func serve(conn *uringloop.Socket) error {
	defer conn.Close()
	buf := mcache.Malloc(READ_SZ)
	defer mcache.Free(buf)
	for {
		n, err := conn.Recv(buf, 0)
		if err != nil || n == 0 {
			return err
		}
		for off := 0; off < n; {
			w, err := conn.Send(buf[off:n], 0)
			if err != nil {
				return err
			}
			off += w
		}
	}
}

func MustNil(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
