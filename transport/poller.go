//go:build linux

package transport

import (
	"encoding/binary"
	"errors"
	"syscall"
	"time"

	"go.uber.org/multierr"
)

const (
	// eventfd2 flags, they share their values with the open(2) ones
	efdNonblock = syscall.O_NONBLOCK
	efdCloexec  = syscall.O_CLOEXEC
)

// Poller is a level triggered epoll instance with an eventfd that other
// goroutines can use to wake up Wait.
type Poller struct {
	fd     int
	wakeFd int
}

func MakePoller() (*Poller, error) {
	var (
		poller Poller
		err    error
	)

	// Open an epoll fd
	// https://man7.org/linux/man-pages/man2/epoll_create.2.html
	poller.fd, err = syscall.EpollCreate1(syscall.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}

	// https://man7.org/linux/man-pages/man2/eventfd.2.html
	r0, _, e0 := syscall.Syscall(syscall.SYS_EVENTFD2, 0, efdNonblock|efdCloexec, 0)
	if e0 != 0 {
		syscall.Close(poller.fd)
		return nil, e0
	}
	poller.wakeFd = int(r0)

	// Only readability matters, an eventfd is almost always writable
	if err := poller.Add(poller.wakeFd, syscall.EPOLLIN); err != nil {
		return nil, multierr.Append(err, poller.Close())
	}

	return &poller, nil
}

// https://man7.org/linux/man-pages/man2/epoll_ctl.2.html
func (p *Poller) Add(fd int, events uint32) error {
	return syscall.EpollCtl(p.fd, syscall.EPOLL_CTL_ADD, fd, &syscall.EpollEvent{Fd: int32(fd), Events: events})
}

func (p *Poller) Modify(fd int, events uint32) error {
	return syscall.EpollCtl(p.fd, syscall.EPOLL_CTL_MOD, fd, &syscall.EpollEvent{Fd: int32(fd), Events: events})
}

func (p *Poller) Remove(fd int) error {
	return syscall.EpollCtl(p.fd, syscall.EPOLL_CTL_DEL, fd, nil)
}

// Wake makes a concurrent or future Wait return. Safe to call from any goroutine.
func (p *Poller) Wake() error {
	var one [8]byte
	binary.LittleEndian.PutUint64(one[:], 1)

	_, err := syscall.Write(p.wakeFd, one[:])
	if errors.Is(err, syscall.EAGAIN) {
		// The counter is saturated, Wait will wake anyway
		return nil
	}

	return err
}

// IsWake returns true if fd is the poller's own wake up fd. Call ClearWake
// once it has been handled.
func (p *Poller) IsWake(fd int) bool {
	return fd == p.wakeFd
}

func (p *Poller) ClearWake() {
	var buf [8]byte
	syscall.Read(p.wakeFd, buf[:])
}

// Wait fills events with ready fds, waiting at most timeout. Interrupted waits
// return no events rather than an error.
func (p *Poller) Wait(events []syscall.EpollEvent, timeout time.Duration) (int, error) {
	n, err := syscall.EpollWait(p.fd, events, int(timeout/time.Millisecond))
	if errors.Is(err, syscall.EINTR) {
		return 0, nil
	}

	return n, err
}

func (p *Poller) Close() error {
	return multierr.Append(syscall.Close(p.wakeFd), syscall.Close(p.fd))
}
