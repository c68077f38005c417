package protocol_test

import (
	"bytes"
	"strings"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/sprt/protocol"
)

func feedInChunks(d *protocol.Deframer, data []byte, size int) [][]byte {
	var msgs [][]byte

	for start := 0; start < len(data); start += size {
		end := start + size
		if end > len(data) {
			end = len(data)
		}

		for msg := d.Feed(data[start:end]); msg != nil; msg = d.Feed(nil) {
			msgs = append(msgs, msg)
		}
	}

	return msgs
}

var _ = Describe("Deframer", func() {
	var messages [][]byte

	BeforeEach(func() {
		messages = nil

		req, err := protocol.NewRequest("Poll", nil, nil)
		Expect(err).To(Succeed())
		resp, err := protocol.NewResponse(protocol.StatusOK, "NameStep", "Name (First Last)> ", mustAttrs("a", "1"))
		Expect(err).To(Succeed())
		big, err := protocol.NewRequest("FoodStep", []string{strings.Repeat("x", 3000)}, mustAttrs("FName", "Bob", "LName", "Smith"))
		Expect(err).To(Succeed())

		for _, m := range []protocol.Message{req, resp, big, req} {
			data, err := protocol.Marshal(m)
			Expect(err).To(Succeed())
			messages = append(messages, data)
		}
	})

	It("returns nothing until the delimiter arrives", func() {
		d := protocol.NewDeframer()

		Expect(d.Feed([]byte("SPRT/1.0 Q RUN Poll\r\n"))).To(BeNil())
		Expect(d.Feed([]byte("\r"))).To(BeNil())
		Expect(d.Feed([]byte("\n"))).To(Equal([]byte("SPRT/1.0 Q RUN Poll\r\n\r\n")))
		Expect(d.Buffered()).To(Equal(0))
	})

	It("extracts every message, in order, whatever the chunk size", func() {
		all := bytes.Join(messages, nil)

		for _, size := range []int{1, 2, 3, 7, 64, 1024, len(all)} {
			d := protocol.NewDeframer()

			Expect(feedInChunks(d, all, size)).To(Equal(messages), "chunk size %d", size)
			Expect(d.Buffered()).To(Equal(0))
		}
	})

	It("returns one message per call and drains the rest on empty feeds", func() {
		d := protocol.NewDeframer()

		Expect(d.Feed(bytes.Join(messages, nil))).To(Equal(messages[0]))
		Expect(d.Feed(nil)).To(Equal(messages[1]))
		Expect(d.Feed([]byte{})).To(Equal(messages[2]))
		Expect(d.Feed(nil)).To(Equal(messages[3]))
		Expect(d.Feed(nil)).To(BeNil())
		Expect(d.Buffered()).To(Equal(0))
	})

	It("keeps a trailing partial message buffered", func() {
		d := protocol.NewDeframer()

		Expect(d.Feed(append(append([]byte{}, messages[0]...), "SPRT/1.0 Q"...))).To(Equal(messages[0]))
		Expect(d.Buffered()).To(Equal(len("SPRT/1.0 Q")))
		Expect(d.Feed(nil)).To(BeNil())
	})

	It("works from its zero value", func() {
		var d protocol.Deframer
		Expect(d.Feed(messages[0])).To(Equal(messages[0]))
	})
})
