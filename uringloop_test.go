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

package uringloop

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/cloudwego/uringloop/internal/runner"
	"github.com/cloudwego/uringloop/uring"
)

func MustNil(t *testing.T, val interface{}) {
	t.Helper()
	Assert(t, val == nil, val)
	if val != nil {
		t.Fatal("assertion nil failed, val=", val)
	}
}

func MustTrue(t *testing.T, cond bool) {
	t.Helper()
	if !cond {
		t.Fatal("assertion true failed.")
	}
}

func Equal(t *testing.T, got, expect interface{}) {
	t.Helper()
	if got != expect {
		t.Fatalf("assertion equal failed, got=[%v], expect=[%v]", got, expect)
	}
}

func Assert(t *testing.T, cond bool, val ...interface{}) {
	t.Helper()
	if !cond {
		if len(val) > 0 {
			val = append([]interface{}{"assertion failed:"}, val...)
			t.Fatal(val...)
		} else {
			t.Fatal("assertion failed")
		}
	}
}

func TestEqual(t *testing.T) {
	var err error
	MustNil(t, err)
	MustTrue(t, err == nil)
	Equal(t, err, nil)
	Assert(t, err == nil, err)
}

// newTestReactor creates a reactor on a real ring, the test is skipped when
// io_uring is not available to the process.
func newTestReactor(t *testing.T, entries uint32, ops ...Option) *Reactor {
	t.Helper()
	r, err := New(entries, ops...)
	if uring.IsUnavailable(err) {
		t.Skipf("io_uring unavailable: %v", err)
	}
	MustNil(t, err)
	return r
}

func TestConfigure(t *testing.T) {
	var buf bytes.Buffer
	var ran bool
	saved := runner.RunTask
	defer func() {
		runner.RunTask = saved
		_ = Configure(Config{LoggerOutput: os.Stderr})
	}()
	err := Configure(Config{
		LoggerOutput: &buf,
		Runner: func(ctx context.Context, f func()) {
			ran = true
			f()
		},
	})
	MustNil(t, err)
	logger.Printf("URINGLOOP: hello")
	MustTrue(t, bytes.Contains(buf.Bytes(), []byte("URINGLOOP: hello")))
	runner.RunTask(context.Background(), func() {})
	MustTrue(t, ran)
}
