package poll_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/sprt/apps/poll"
	"github.com/luma/sprt/protocol"
	"github.com/luma/sprt/session"
)

func send(m *session.Machine, attrs *protocol.Attributes, function string, params ...string) *protocol.Response {
	req, err := protocol.NewRequest(function, params, attrs)
	Expect(err).To(Succeed())
	return m.Handle(req)
}

func attrs(pairs ...string) *protocol.Attributes {
	a, err := protocol.AttributesOf(pairs...)
	Expect(err).To(Succeed())
	return a
}

var _ = Describe("Poll", func() {
	It("asks for a name when it does not know the client", func() {
		m := session.NewMachine(poll.New(), nil)

		resp := send(m, nil, "Poll")
		Expect(resp.Function()).To(Equal("NameStep"))
		Expect(resp.Message()).To(Equal("Name (First Last)> "))

		resp = send(m, resp.Attributes(), "NameStep", "Bob", "Smith")
		Expect(resp.Function()).To(Equal("FoodStep"))
		Expect(resp.Message()).To(Equal("Bob's Food mood> "))
		Expect(resp.Attributes().Equal(attrs("FName", "Bob", "LName", "Smith"))).To(BeTrue())

		resp = send(m, resp.Attributes(), "FoodStep", "mexican")
		Expect(resp.Status()).To(Equal(protocol.StatusOK))
		Expect(resp.Function()).To(Equal(protocol.NoNextFunction))
		Expect(resp.Message()).To(Equal("20% + 1% off at Tacopia"))
		Expect(resp.Attributes().Equal(attrs("FName", "Bob", "LName", "Smith", "Repeat", "1"))).To(BeTrue())
	})

	It("skips the name for returning clients and counts repeats", func() {
		m := session.NewMachine(poll.New(), nil)
		known := attrs("FName", "Ann", "LName", "Lee", "Repeat", "4")

		resp := send(m, known, "Poll")
		Expect(resp.Function()).To(Equal("FoodStep"))
		Expect(resp.Message()).To(Equal("Ann's Food mood> "))

		resp = send(m, resp.Attributes(), "FoodStep", "Sushi")
		Expect(resp.Message()).To(Equal("10% + 5% off at McDonalds"))

		value, _ := resp.Attributes().Get("Repeat")
		Expect(value).To(Equal("5"))
	})

	It("ends with an error when Repeat is not a number", func() {
		m := session.NewMachine(poll.New(), nil)
		bad := attrs("FName", "Ann", "LName", "Lee", "Repeat", "abc")

		send(m, bad, "Poll")
		resp := send(m, bad, "FoodStep", "italian")
		Expect(resp.Status()).To(Equal(protocol.StatusError))
		Expect(resp.Function()).To(Equal(protocol.NoNextFunction))
		Expect(resp.Message()).To(Equal("Repeat (in cookie list) must be integer"))
	})

	It("re-prompts when the name has the wrong number of parts", func() {
		m := session.NewMachine(poll.New(), nil)
		send(m, nil, "Poll")

		resp := send(m, nil, "NameStep", "Cher")
		Expect(resp.Status()).To(Equal(protocol.StatusError))
		Expect(resp.Function()).To(Equal("NameStep"))
		Expect(resp.Message()).To(Equal(session.MsgBadParamCount + "Name (First Last)> "))
	})

	It("registers under its name", func() {
		r := session.NewRegistry()
		Expect(poll.Register(r)).To(Succeed())

		step, err := r.Start(poll.Name)
		Expect(err).To(Succeed())
		Expect(step.Name()).To(Equal(poll.Name))
	})
})
