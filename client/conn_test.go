package client_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/sprt/apps/poll"
	"github.com/luma/sprt/client"
	"github.com/luma/sprt/protocol"
	"github.com/luma/sprt/session"
	"github.com/luma/sprt/storage"
	"github.com/luma/sprt/transport"
)

func startSPRT() (*transport.TCP, *storage.InmemoryStore) {
	registry := session.NewRegistry()
	Expect(poll.Register(registry)).To(Succeed())

	store := storage.NewInmemoryStore()
	server := transport.NewTCP(transport.Options{
		Host:     "127.0.0.1",
		Workers:  2,
		Registry: registry,
		Store:    store,
	})
	Expect(server.Start(context.Background())).To(Succeed())

	return server, store
}

var _ = Describe("Conn", func() {
	var (
		server *transport.TCP
		store  *storage.InmemoryStore
		ctx    context.Context
		cancel context.CancelFunc
	)

	BeforeEach(func() {
		server, store = startSPRT()
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	})

	AfterEach(func() {
		cancel()
		Expect(server.Close()).To(Succeed())
		store.Close()
	})

	It("runs a session, carrying attributes between requests", func() {
		conn, err := client.Dial(ctx, server.Addr().String(), nil)
		Expect(err).To(Succeed())
		defer conn.Close()

		resp, err := conn.Send(ctx, "Poll")
		Expect(err).To(Succeed())
		Expect(resp.Function()).To(Equal("NameStep"))

		resp, err = conn.Send(ctx, "NameStep", "Ada", "Lovelace")
		Expect(err).To(Succeed())
		Expect(resp.Function()).To(Equal("FoodStep"))

		value, ok := conn.Attributes().Get("FName")
		Expect(ok).To(BeTrue())
		Expect(value).To(Equal("Ada"))

		resp, err = conn.Send(ctx, "FoodStep", "Italian")
		Expect(err).To(Succeed())
		Expect(resp.Terminal()).To(BeTrue())
		Expect(resp.Message()).To(Equal("25% + 1% off at Pastastic"))
		Expect(conn.Done()).To(BeTrue())

		value, _ = conn.Attributes().Get("Repeat")
		Expect(value).To(Equal("1"))

		_, err = conn.Send(ctx, "Poll")
		Expect(err).To(MatchError(client.ErrSessionEnded))
	})

	It("starts from attributes kept from an earlier session", func() {
		conn, err := client.Dial(ctx, server.Addr().String(), nil)
		Expect(err).To(Succeed())
		defer conn.Close()

		attrs, err := protocol.AttributesOf("FName", "Ada", "LName", "Lovelace", "Repeat", "3")
		Expect(err).To(Succeed())
		conn.SetAttributes(attrs)

		resp, err := conn.Send(ctx, "Poll")
		Expect(err).To(Succeed())
		Expect(resp.Function()).To(Equal("FoodStep"))

		resp, err = conn.Send(ctx, "FoodStep", "Thai")
		Expect(err).To(Succeed())
		Expect(resp.Message()).To(Equal("10% + 4% off at McDonalds"))
	})

	It("refuses requests it can't encode", func() {
		conn, err := client.Dial(ctx, server.Addr().String(), nil)
		Expect(err).To(Succeed())
		defer conn.Close()

		_, err = conn.Send(ctx, "Poll", "two words")
		Expect(err).To(MatchError(protocol.ErrInvalid))
	})

	It("gives up when the context is cancelled", func() {
		conn, err := client.Dial(ctx, server.Addr().String(), nil)
		Expect(err).To(Succeed())
		defer conn.Close()

		Expect(server.Close()).To(Succeed())

		short, stop := context.WithTimeout(ctx, 50*time.Millisecond)
		defer stop()

		_, err = conn.Send(short, "Poll")
		Expect(err).To(HaveOccurred())
	})
})
