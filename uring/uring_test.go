// Copyright 2022 CloudWeGo Authors
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

package uring

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

const openFile = "./../go.mod"

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

// newURing skips the test when the kernel or the sandbox refuses io_uring.
func newURing(t *testing.T, entries uint32, ops ...SetupOp) *URing {
	t.Helper()
	u, err := IOURing(entries, ops...)
	if IsUnavailable(err) {
		t.Skipf("io_uring unavailable: %v", err)
	}
	MustNil(t, err)
	return u
}

func TestStructLayout(t *testing.T) {
	Equal(t, unsafe.Sizeof(URingSQE{}), uintptr(64))
	Equal(t, unsafe.Sizeof(URingCQE{}), uintptr(16))
	Equal(t, unsafe.Sizeof(ringParams{}), uintptr(120))
	Equal(t, unsafe.Sizeof(Probe{}), uintptr(16+256*8))
	Equal(t, unsafe.Offsetof(URingSQE{}.UserData), uintptr(32))
	Equal(t, unsafe.Offsetof(URingSQE{}.SpliceFdIn), uintptr(44))
}

func TestOpcodes(t *testing.T) {
	Equal(t, IORING_OP_STATX, uint8(21))
	Equal(t, IORING_OP_READ, uint8(22))
	Equal(t, IORING_OP_OPENAT2, uint8(28))
	Equal(t, IORING_OP_SPLICE, uint8(30))
	Equal(t, IORING_OP_TEE, uint8(33))
	Equal(t, IORING_OP_LINKAT, uint8(39))
	Equal(t, IORING_OP_SOCKET, uint8(45))
}

func TestPrepSplice(t *testing.T) {
	var sqe URingSQE
	sqe.UserData = 7
	Splice(3, -1, 4, 10, 512, 0).Prep(&sqe)
	Equal(t, sqe.OpCode, IORING_OP_SPLICE)
	Equal(t, sqe.Fd, int32(4))
	Equal(t, sqe.SpliceFdIn, int32(3))
	Equal(t, sqe.Addr, offAtCursor)
	Equal(t, sqe.Off, uint64(10))
	Equal(t, sqe.Len, uint32(512))
	Equal(t, sqe.UserData, uint64(0))
}

func TestSockaddr(t *testing.T) {
	var raw unix.RawSockaddrAny
	n, err := PutSockaddr(&raw, &unix.SockaddrInet4{Port: 8080, Addr: [4]byte{127, 0, 0, 1}})
	MustNil(t, err)
	Equal(t, n, uint32(unix.SizeofSockaddrInet4))
	sa, err := ParseSockaddr(&raw)
	MustNil(t, err)
	in4 := sa.(*unix.SockaddrInet4)
	Equal(t, in4.Port, 8080)
	Equal(t, in4.Addr, [4]byte{127, 0, 0, 1})

	n, err = PutSockaddr(&raw, &unix.SockaddrInet6{Port: 443, Addr: [16]byte{15: 1}})
	MustNil(t, err)
	Equal(t, n, uint32(unix.SizeofSockaddrInet6))
	sa, err = ParseSockaddr(&raw)
	MustNil(t, err)
	Equal(t, sa.(*unix.SockaddrInet6).Port, 443)

	_, err = PutSockaddr(&raw, &unix.SockaddrNetlink{})
	Equal(t, err, syscall.EAFNOSUPPORT)
}

func TestNewProbe(t *testing.T) {
	p := NewProbe(IORING_OP_NOP, IORING_OP_READ)
	MustTrue(t, p.Supported(IORING_OP_NOP))
	MustTrue(t, p.Supported(IORING_OP_READ))
	MustTrue(t, !p.Supported(IORING_OP_WRITE))
	MustTrue(t, !p.Supported(IORING_OP_SOCKET))
	Equal(t, p.LastOp(), IORING_OP_READ)
}

func TestClose(t *testing.T) {
	u := newURing(t, 8)
	Assert(t, u.Fd() != 0)
	defer u.Close()

	f, err := os.Open(openFile)
	MustNil(t, err)
	defer f.Close()

	err = u.Queue(Close(int(f.Fd())), 0, 0)
	MustNil(t, err)

	_, err = u.Submit()
	MustNil(t, err)

	cqe, err := u.WaitCQE()
	MustNil(t, err)
	MustNil(t, cqe.Error())
	u.CQESeen()

	_, err = unix.FcntlInt(f.Fd(), unix.F_GETFD, 0)
	Equal(t, err, unix.EBADF)
}

func TestReadV(t *testing.T) {
	u := newURing(t, 8)
	defer u.Close()

	f, err := os.Open(openFile)
	MustNil(t, err)
	defer f.Close()

	v, err := makeV(f, 16)
	MustNil(t, err)

	err = u.Queue(ReadV(int(f.Fd()), v, 0), 0, 0)
	MustNil(t, err)

	_, err = u.Submit()
	MustNil(t, err)

	cqe, err := u.WaitCQE()
	MustNil(t, err)
	MustNil(t, cqe.Error())
	u.CQESeen()

	expected, err := os.ReadFile(openFile)
	MustNil(t, err)
	Assert(t, vToString(v) == string(expected))
}

func TestWriteReadFile(t *testing.T) {
	u := newURing(t, 8)
	defer u.Close()

	path := filepath.Join(t.TempDir(), "data")
	open := OpenAt(unix.AT_FDCWD, path, unix.O_CREAT|unix.O_RDWR|unix.O_CLOEXEC, 0o644)
	MustNil(t, u.Queue(open, 0, 1))
	_, err := u.Submit()
	MustNil(t, err)
	cqe, err := u.WaitCQE()
	MustNil(t, err)
	MustNil(t, cqe.Error())
	fd := int(cqe.Res)
	u.CQESeen()
	defer unix.Close(fd)

	payload := []byte("hello uring")
	MustNil(t, u.Queue(Write(fd, payload, 0), IOSQE_IO_LINK, 2))
	buf := make([]byte, 64)
	MustNil(t, u.Queue(Read(fd, buf, 0), 0, 3))
	_, err = u.SubmitAndWait(2)
	MustNil(t, err)

	cqes := make([]*URingCQE, 4)
	n := u.PeekBatchCQE(cqes)
	Equal(t, n, 2)
	for i := 0; i < n; i++ {
		Equal(t, cqes[i].Res, int32(len(payload)))
	}
	u.Advance(uint32(n))
	Equal(t, string(buf[:len(payload)]), string(payload))
}

func TestReady(t *testing.T) {
	u := newURing(t, 8)
	defer u.Close()

	Equal(t, u.cqRing.ready(), uint32(0))

	err := queueSQEs(u, 5, 0)
	MustNil(t, err)
	Equal(t, u.cqRing.ready(), uint32(5))

	u.CQESeen()
	Equal(t, u.cqRing.ready(), uint32(4))

	u.Advance(4)
	Equal(t, u.cqRing.ready(), uint32(0))
}

func TestSQFull(t *testing.T) {
	u := newURing(t, 4)
	defer u.Close()

	entries := int(u.SQEntries())
	for i := 0; i < entries; i++ {
		MustNil(t, u.Queue(Nop(), 0, uint64(i)))
	}
	Equal(t, u.Queue(Nop(), 0, 99), ErrSQFull)
	Assert(t, u.NextSQE() == nil)

	_, err := u.Submit()
	MustNil(t, err)
	Assert(t, u.NextSQE() != nil)
}

func TestTimeoutWait(t *testing.T) {
	u := newURing(t, 8)
	defer u.Close()

	err := u.Queue(Nop(), 0, 1)
	MustNil(t, err)

	n, err := u.Submit()
	MustNil(t, err)
	Equal(t, n, uint(1))

	got := 0
	for {
		cqe, err := u.WaitCQETimeout(50 * time.Millisecond)
		if errors.Is(err, syscall.ETIME) {
			break
		}
		if errors.Is(err, syscall.EINTR) || errors.Is(err, syscall.EAGAIN) {
			continue
		}
		MustNil(t, err)
		MustNil(t, cqe.Error())
		Equal(t, cqe.UserData, uint64(1))
		u.CQESeen()
		got++
	}
	Equal(t, got, 1)
}

func TestPeekCQE(t *testing.T) {
	u := newURing(t, 8)
	defer u.Close()

	cqeBuff := make([]*URingCQE, 128)

	n := u.PeekBatchCQE(cqeBuff)
	Equal(t, n, 0)

	err := queueSQEs(u, 4, 0)
	MustNil(t, err)

	n = u.PeekBatchCQE(cqeBuff)
	Equal(t, n, 4)

	for i := 0; i < 4; i++ {
		Equal(t, cqeBuff[i].UserData, uint64(i))
	}

	err = queueSQEs(u, 4, 4)
	MustNil(t, err)

	u.Advance(4)
	n = u.PeekBatchCQE(cqeBuff)
	Equal(t, n, 4)

	for i := 0; i < 4; i++ {
		Equal(t, cqeBuff[i].UserData, uint64(i+4))
	}

	u.Advance(4)
	n = u.PeekBatchCQE(cqeBuff)
	Equal(t, n, 0)
}

func TestProbe(t *testing.T) {
	u := newURing(t, 8)
	defer u.Close()

	probe, err := u.Probe()
	if errors.Is(err, syscall.EINVAL) {
		t.Skip("IORING_REGISTER_PROBE not supported")
	}
	MustNil(t, err)

	Assert(t, probe.LastOp() != 0)
	MustTrue(t, probe.Supported(IORING_OP_NOP))
}

func TestCQSize(t *testing.T) {
	u := newURing(t, 8, CQSize(64))
	Equal(t, u.CQEntries(), uint32(64))

	err := u.Close()
	MustNil(t, err)
	Equal(t, u.Fd(), -1)

	_, err = IOURing(4, CQSize(0))
	Assert(t, err != nil)
}

func TestRegisterFiles(t *testing.T) {
	u := newURing(t, 8)
	defer u.Close()

	f, err := os.Open(openFile)
	MustNil(t, err)
	defer f.Close()

	err = u.RegisterFiles([]int32{int32(f.Fd()), -1})
	if errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.EBADF) {
		t.Skipf("fixed files not supported: %v", err)
	}
	MustNil(t, err)
	MustNil(t, u.UpdateFiles(1, []int32{int32(f.Fd())}))

	buf := make([]byte, 6)
	MustNil(t, u.Queue(Read(1, buf, 0), IOSQE_FIXED_FILE, 1))
	_, err = u.Submit()
	MustNil(t, err)
	cqe, err := u.WaitCQE()
	MustNil(t, err)
	MustNil(t, cqe.Error())
	u.CQESeen()
	Equal(t, string(buf), "module")

	MustNil(t, u.UnRegisterFiles())
}

func makeV(f *os.File, vSZ int64) ([][]byte, error) {
	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	bytes := stat.Size()
	blocks := int(math.Ceil(float64(bytes) / float64(vSZ)))

	buffs := make([][]byte, 0, blocks)
	for bytes != 0 {
		bytesToRead := bytes
		if bytesToRead > vSZ {
			bytesToRead = vSZ
		}

		buffs = append(buffs, make([]byte, bytesToRead))
		bytes -= bytesToRead
	}

	return buffs, nil
}

func vToString(v [][]byte) (str string) {
	for _, vector := range v {
		str += string(vector)
	}
	return
}

func queueSQEs(u *URing, count, offset int) (err error) {
	for i := 0; i < count; i++ {
		err = u.Queue(Nop(), 0, uint64(i+offset))
		if err != nil {
			return
		}
	}
	_, err = u.SubmitAndWait(uint32(count))
	return
}
