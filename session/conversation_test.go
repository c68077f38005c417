package session_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/sprt/protocol"
	"github.com/luma/sprt/session"
)

var _ = Describe("Conversation", func() {
	var (
		registry *session.Registry
		runs     []string
		recorder session.RecorderFunc
	)

	BeforeEach(func() {
		runs = nil
		recorder = func(app string) { runs = append(runs, app) }

		registry = session.NewRegistry()
		registry.MustRegister("Greet", func() session.Step { return greetApp(newHookCounter()) })
	})

	It("picks the application from the first request and records it once", func() {
		c := session.NewConversation(registry, recorder, nil)

		resp := c.Handle(request("Greet", nil))
		Expect(resp.Function()).To(Equal("Ask"))
		Expect(c.Done()).To(BeFalse())
		Expect(c.App()).To(Equal("Greet"))

		resp = c.Handle(request("Ask", []string{"Bob"}))
		Expect(resp.Message()).To(Equal("Hello, Bob"))
		Expect(c.Done()).To(BeTrue())

		Expect(runs).To(Equal([]string{"Greet"}))
	})

	It("ends on an unknown application without recording", func() {
		c := session.NewConversation(registry, recorder, nil)

		resp := c.Handle(request("Nope", nil, "x", "1"))
		Expect(resp.Status()).To(Equal(protocol.StatusError))
		Expect(resp.Function()).To(Equal(protocol.NoNextFunction))
		Expect(resp.Message()).To(Equal(session.MsgUnknownApp))
		Expect(c.Done()).To(BeTrue())
		Expect(runs).To(BeEmpty())
	})

	It("rejects a bad first request differently from a later one", func() {
		first := session.NewConversation(registry, recorder, nil)
		resp := first.Reject(protocol.ErrInvalid)
		Expect(resp.Message()).To(Equal(session.MsgBadInitial))
		Expect(resp.Terminal()).To(BeTrue())
		Expect(first.Done()).To(BeTrue())

		later := session.NewConversation(registry, recorder, nil)
		later.Handle(request("Greet", nil))
		resp = later.Reject(protocol.ErrInvalid)
		Expect(resp.Message()).To(Equal(session.MsgBadData))
		Expect(resp.Terminal()).To(BeTrue())
	})

	It("survives a panicking recorder", func() {
		c := session.NewConversation(registry, session.RecorderFunc(func(string) { panic("nope") }), nil)

		resp := c.Handle(request("Greet", nil))
		Expect(resp.Function()).To(Equal("Ask"))
	})
})
