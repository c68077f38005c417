//go:build linux

package transport_test

import (
	"syscall"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/sprt/transport"
)

var _ = Describe("Poller", func() {
	var poller *transport.Poller

	BeforeEach(func() {
		var err error
		poller, err = transport.MakePoller()
		Expect(err).To(Succeed())
	})

	AfterEach(func() {
		Expect(poller.Close()).To(Succeed())
	})

	It("times out when nothing is ready", func() {
		events := make([]syscall.EpollEvent, 4)

		n, err := poller.Wait(events, 10*time.Millisecond)
		Expect(err).To(Succeed())
		Expect(n).To(BeZero())
	})

	It("can be woken from another goroutine", func() {
		events := make([]syscall.EpollEvent, 4)

		go func() {
			defer GinkgoRecover()
			time.Sleep(10 * time.Millisecond)
			Expect(poller.Wake()).To(Succeed())
		}()

		n, err := poller.Wait(events, 5*time.Second)
		Expect(err).To(Succeed())
		Expect(n).To(Equal(1))
		Expect(poller.IsWake(int(events[0].Fd))).To(BeTrue())

		poller.ClearWake()

		n, err = poller.Wait(events, 10*time.Millisecond)
		Expect(err).To(Succeed())
		Expect(n).To(BeZero(), "a cleared wake up is not reported again")
	})

	It("reports readable fds", func() {
		fds := make([]int, 2)
		Expect(syscall.Pipe(fds)).To(Succeed())
		defer syscall.Close(fds[0])
		defer syscall.Close(fds[1])

		Expect(poller.Add(fds[0], syscall.EPOLLIN)).To(Succeed())

		_, err := syscall.Write(fds[1], []byte("x"))
		Expect(err).To(Succeed())

		events := make([]syscall.EpollEvent, 4)
		n, err := poller.Wait(events, 5*time.Second)
		Expect(err).To(Succeed())
		Expect(n).To(Equal(1))
		Expect(int(events[0].Fd)).To(Equal(fds[0]))

		Expect(poller.Remove(fds[0])).To(Succeed())

		n, err = poller.Wait(events, 10*time.Millisecond)
		Expect(err).To(Succeed())
		Expect(n).To(BeZero())
	})
})
