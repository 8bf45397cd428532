// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build linux

package ipmi

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/NVIDIA/kstat-exporter/pkg/defaults"
	"github.com/NVIDIA/kstat-exporter/pkg/errors"
)

// Structures from include/uapi/linux/ipmi.h. Go lays them out with the
// same natural alignment as C, so the sizes encoded in the ioctl numbers
// match on both 32 and 64-bit targets.
type ipmiMsg struct {
	netfn   uint8
	cmd     uint8
	dataLen uint16
	data    *byte
}

type ipmiReq struct {
	addr    *byte
	addrLen uint32
	msgid   int
	msg     ipmiMsg
}

type ipmiRecv struct {
	recvType int32
	addr     *byte
	addrLen  uint32
	msgid    int
	msg      ipmiMsg
}

type systemInterfaceAddr struct {
	addrType int32
	channel  int16
	lun      uint8
	_        uint8
}

const (
	ipmiIoctlMagic = 'i'
	iocWrite       = 1
	iocRead        = 2

	// IPMICTL_SEND_COMMAND is _IOR('i', 13, struct ipmi_req), 0x8028690d
	// on 64-bit targets.
	ipmictlSendCommand = iocRead<<30 | unsafe.Sizeof(ipmiReq{})<<16 | ipmiIoctlMagic<<8 | 13

	// IPMICTL_RECEIVE_MSG_TRUNC is _IOWR('i', 11, struct ipmi_recv),
	// 0xc030690b on 64-bit targets.
	ipmictlReceiveMsgTrunc = (iocRead|iocWrite)<<30 | unsafe.Sizeof(ipmiRecv{})<<16 | ipmiIoctlMagic<<8 | 11

	systemInterfaceAddrType = 0x0c
	bmcChannel              = 0x0f
	maxMsgLength            = 272
)

// device is an open IPMI character device.
type device struct {
	fd    int
	msgid int
}

func openDevice(path string) (transport, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: path, Err: err}
	}
	return &device{fd: fd}, nil
}

func (d *device) Close() error {
	return unix.Close(d.fd)
}

func ioctl(fd int, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// Do sends r and waits for the matching response, bounded by the context
// and defaults.IPMITimeout.
func (d *device) Do(ctx context.Context, r request) ([]byte, error) {
	d.msgid++
	addr := systemInterfaceAddr{addrType: systemInterfaceAddrType, channel: bmcChannel, lun: r.lun}
	req := ipmiReq{
		addr:    (*byte)(unsafe.Pointer(&addr)),
		addrLen: uint32(unsafe.Sizeof(addr)),
		msgid:   d.msgid,
		msg:     ipmiMsg{netfn: r.netfn, cmd: r.cmd, dataLen: uint16(len(r.data))},
	}
	if len(r.data) > 0 {
		req.msg.data = &r.data[0]
	}
	err := ioctl(d.fd, ipmictlSendCommand, unsafe.Pointer(&req))
	runtime.KeepAlive(&addr)
	runtime.KeepAlive(r.data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSourceFailure,
			fmt.Sprintf("ipmi send netfn 0x%02x cmd 0x%02x failed", r.netfn, r.cmd), err)
	}

	deadline := time.Now().Add(defaults.IPMITimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	for {
		if err := d.wait(deadline); err != nil {
			return nil, err
		}
		resp, msgid, err := d.receive()
		if err != nil {
			return nil, err
		}
		// Responses to requests abandoned after a timeout can still arrive.
		if msgid != d.msgid {
			continue
		}
		if len(resp) == 0 {
			return nil, errors.New(errors.ErrCodeInvalidData, "ipmi response without completion code")
		}
		if resp[0] != 0 {
			return nil, &completionError{netfn: r.netfn, cmd: r.cmd, code: resp[0]}
		}
		return resp[1:], nil
	}
}

func (d *device) wait(deadline time.Time) error {
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return errors.New(errors.ErrCodeTimeout, "ipmi response timed out")
		}
		fds := []unix.PollFd{{Fd: int32(d.fd), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, int(remaining.Milliseconds())+1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return errors.Wrap(errors.ErrCodeSourceFailure, "ipmi poll failed", err)
		}
		if n > 0 {
			return nil
		}
	}
}

func (d *device) receive() ([]byte, int, error) {
	buf := make([]byte, maxMsgLength)
	var addr systemInterfaceAddr
	recv := ipmiRecv{
		addr:    (*byte)(unsafe.Pointer(&addr)),
		addrLen: uint32(unsafe.Sizeof(addr)),
		msg:     ipmiMsg{dataLen: uint16(len(buf)), data: &buf[0]},
	}
	err := ioctl(d.fd, ipmictlReceiveMsgTrunc, unsafe.Pointer(&recv))
	runtime.KeepAlive(&addr)
	runtime.KeepAlive(buf)
	// EMSGSIZE reports truncation; the leading bytes are still valid.
	if err != nil && err != unix.EMSGSIZE {
		return nil, 0, errors.Wrap(errors.ErrCodeSourceFailure, "ipmi receive failed", err)
	}
	n := min(int(recv.msg.dataLen), len(buf))
	return buf[:n], recv.msgid, nil
}
