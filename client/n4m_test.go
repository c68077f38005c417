package client_test

import (
	"context"
	"net"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/sprt/client"
	"github.com/luma/sprt/n4m"
	"github.com/luma/sprt/storage"
	"github.com/luma/sprt/transport"
)

var _ = Describe("Query", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	})

	AfterEach(func() {
		cancel()
	})

	It("asks an N4M server for usage", func() {
		store := storage.NewInmemoryStore()
		defer store.Close()
		Expect(store.RecordRun(ctx, "Poll")).To(Succeed())

		server := transport.NewUDP(transport.Options{Host: "127.0.0.1", Store: store})
		Expect(server.Start(ctx)).To(Succeed())
		defer server.Close()

		result, err := client.Query(ctx, server.Addr().String(), "Acme", nil)
		Expect(err).To(Succeed())
		Expect(result.IDMismatch).To(BeFalse())
		Expect(result.ID).To(Equal(result.SentID))
		Expect(result.ErrorCode).To(Equal(n4m.NoError))
		Expect(result.Applications).To(Equal([]n4m.ApplicationEntry{{Name: "Poll", Count: 1}}))
	})

	It("flags a response to a different message id", func() {
		conn, err := net.ListenPacket("udp", "127.0.0.1:0")
		Expect(err).To(Succeed())
		defer conn.Close()

		go func() {
			defer GinkgoRecover()

			buf := make([]byte, n4m.MaxDatagram)
			n, addr, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}

			msg, err := n4m.Decode(buf[:n])
			Expect(err).To(Succeed())

			data, err := n4m.ErrorResponse(n4m.NoError, msg.MsgID()+1).Encode()
			Expect(err).To(Succeed())

			_, err = conn.WriteTo(data, addr)
			Expect(err).To(Succeed())
		}()

		result, err := client.Query(ctx, conn.LocalAddr().String(), "Acme", nil)
		Expect(err).To(Succeed())
		Expect(result.IDMismatch).To(BeTrue())
		Expect(result.ID).To(Equal(result.SentID + 1))
	})

	It("refuses business names N4M can't carry", func() {
		_, err := client.Query(ctx, "127.0.0.1:1", "caf\xc3\xa9", nil)
		Expect(n4m.CodeOf(err)).To(Equal(n4m.BadMsg))
	})
})
