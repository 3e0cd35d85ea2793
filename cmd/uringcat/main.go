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

// Command uringcat concatenates files to stdout through io_uring.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"golang.org/x/sys/unix"

	"github.com/cloudwego/uringloop"
	"github.com/cloudwego/uringloop/uring"
)

const BLOCK_SZ = 1024

type stdout struct{}

func (stdout) Fd() int { return unix.Stdout }

var readv = flag.Bool("readv", false, "read every file with one readv of 1KiB blocks instead of splicing it")

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-readv] [file name] <[file name] ...>\n", os.Args[0])
	}
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	r, err := uringloop.New(8)
	MustNil(err)
	defer r.Close()

	for _, fileName := range flag.Args() {
		_, err := uringloop.BlockOn(r, func() (int64, error) {
			return cat(r, fileName)
		})
		MustNil(err)
	}
}

func cat(r *uringloop.Reactor, fileName string) (int64, error) {
	f, err := uringloop.Open(r, fileName, unix.O_RDONLY, 0)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	if !*readv {
		return uringloop.Copy(r, stdout{}, f, -1)
	}

	stat, err := f.Statx(unix.STATX_SIZE)
	if err != nil {
		return 0, err
	}
	var buffs [][]byte
	for remaining := int64(stat.Size); remaining > 0; remaining -= BLOCK_SZ {
		buffs = append(buffs, make([]byte, min(remaining, BLOCK_SZ)))
	}
	n, err := f.Readv(buffs, 0)
	if err != nil {
		return 0, err
	}
	var written int64
	for _, b := range buffs {
		if n <= 0 {
			break
		}
		if len(b) > n {
			b = b[:n]
		}
		n -= len(b)
		w, err := r.Submit(uring.Write(unix.Stdout, b, -1), 0).Await()
		if err != nil {
			return written, err
		}
		written += int64(w)
	}
	return written, nil
}

func MustNil(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
