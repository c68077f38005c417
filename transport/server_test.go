package transport_test

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/sprt/storage"
	"github.com/luma/sprt/transport"
)

const (
	runPoll      = "SPRT/1.0 Q RUN Poll\r\n\r\n"
	askName      = "SPRT/1.0 R OK NameStep Name (First Last)> \r\n\r\n"
	giveName     = "SPRT/1.0 Q RUN NameStep Bob Smith\r\n\r\n"
	askFood      = "SPRT/1.0 R OK FoodStep Bob's Food mood> \r\nFName=Bob\r\nLName=Smith\r\n\r\n"
	giveFood     = "SPRT/1.0 Q RUN FoodStep Mexican\r\nFName=Bob\r\nLName=Smith\r\n\r\n"
	offerDiscout = "SPRT/1.0 R OK NULL 20% + 1% off at Tacopia\r\nFName=Bob\r\nLName=Smith\r\nRepeat=1\r\n\r\n"
)

var _ = Describe("transport", func() {
	for _, driver := range []string{transport.DriverBlocking, transport.DriverAsync} {
		driver := driver

		Describe(driver+" driver", func() {
			var (
				store   *storage.InmemoryStore
				options transport.Options
				server  transport.Server
			)

			BeforeEach(func() {
				store = storage.NewInmemoryStore()
				options = makeOptions(store)
			})

			JustBeforeEach(func() {
				server = startServer(driver, options)
			})

			AfterEach(func() {
				Expect(server.Close()).To(Succeed())
				store.Close()
			})

			It("listens on an address", func() {
				Expect(server.Addr()).NotTo(BeNil())

				client := dial(server)
				client.close()
			})

			It("runs a session to the end and closes the connection", func() {
				client := dial(server)
				defer client.close()

				client.send(runPoll)
				Expect(client.receive()).To(Equal(askName))

				client.send(giveName)
				Expect(client.receive()).To(Equal(askFood))

				client.send(giveFood)
				Expect(client.receive()).To(Equal(offerDiscout))

				client.waitForClose(5 * time.Second)
			})

			It("counts every session started", func() {
				for i := 0; i < 2; i++ {
					client := dial(server)
					client.send(runPoll)
					Expect(client.receive()).To(Equal(askName))
					client.close()
				}

				Eventually(func() []storage.AppCount {
					snap, err := store.Snapshot(context.Background())
					Expect(err).To(Succeed())
					return snap.Apps
				}).Should(Equal([]storage.AppCount{{Name: "Poll", Count: 2}}))
			})

			It("re-prompts a request with the wrong number of parameters", func() {
				client := dial(server)
				defer client.close()

				client.send(runPoll)
				Expect(client.receive()).To(Equal(askName))

				client.send("SPRT/1.0 Q RUN NameStep Bob\r\n\r\n")
				Expect(client.receive()).To(Equal(
					"SPRT/1.0 R ERROR NameStep Invalid number of parameters. Name (First Last)> \r\n\r\n"))

				client.send(giveName)
				Expect(client.receive()).To(Equal(askFood))
			})

			It("answers messages that arrive together in order", func() {
				client := dial(server)
				defer client.close()

				client.send(runPoll + giveName)
				Expect(client.receive()).To(Equal(askName))
				Expect(client.receive()).To(Equal(askFood))
			})

			It("answers messages that arrive in pieces", func() {
				client := dial(server)
				defer client.close()

				client.send(runPoll[:7])
				time.Sleep(20 * time.Millisecond)
				client.send(runPoll[7:20])
				time.Sleep(20 * time.Millisecond)
				client.send(runPoll[20:])

				Expect(client.receive()).To(Equal(askName))
			})

			It("rejects an unknown application", func() {
				client := dial(server)
				defer client.close()

				client.send("SPRT/1.0 Q RUN Chess\r\n\r\n")
				Expect(client.receive()).To(Equal("SPRT/1.0 R ERROR NULL Unexpected function\r\n\r\n"))
				client.waitForClose(5 * time.Second)
			})

			It("rejects a malformed first request", func() {
				client := dial(server)
				defer client.close()

				client.send("SPRT/1.0 Q JUMP Poll\r\n\r\n")
				Expect(client.receive()).To(Equal("SPRT/1.0 R ERROR NULL Bad initial request\r\n\r\n"))
				client.waitForClose(5 * time.Second)
			})

			It("rejects a malformed later request", func() {
				client := dial(server)
				defer client.close()

				client.send(runPoll)
				Expect(client.receive()).To(Equal(askName))

				client.send("SPRT/1.0 R OK NameStep hi\r\n\r\n")
				Expect(client.receive()).To(Equal("SPRT/1.0 R ERROR NULL Bad data.\r\n\r\n"))
				client.waitForClose(5 * time.Second)
			})

			It("closes without answering when the client hangs up mid request", func() {
				client := dial(server)
				defer client.close()

				client.send(runPoll[:10])
				Expect(client.conn.(interface{ CloseWrite() error }).CloseWrite()).To(Succeed())

				client.waitForClose(5 * time.Second)
			})

			Context("with a short idle timeout", func() {
				BeforeEach(func() {
					options.IdleTimeout = 200 * time.Millisecond
					options.Workers = 1
				})

				It("drops a client that stops reading its responses", func() {
					stalled := dial(server)
					defer stalled.close()

					Expect(stalled.conn.(*net.TCPConn).SetReadBuffer(4096)).To(Succeed())

					stalled.send("SPRT/1.0 Q RUN TicTacToe\r\n\r\n")
					failed := flood(stalled.conn, "SPRT/1.0 Q RUN MoveState 9 9\r\n\r\n")

					var err error
					Eventually(failed, 15*time.Second).Should(Receive(&err))
					Expect(isReset(err) || errors.Is(err, syscall.EPIPE)).To(BeTrue(), "unexpected error %v", err)

					client := dial(server)
					defer client.close()

					client.send(runPoll)
					Expect(client.receive()).To(Equal(askName))
				})

				It("closes a client that sends nothing", func() {
					client := dial(server)
					defer client.close()

					client.waitForClose(5 * time.Second)
				})

				It("closes a client that stops between requests", func() {
					client := dial(server)
					defer client.close()

					client.send(runPoll)
					Expect(client.receive()).To(Equal(askName))

					time.Sleep(400 * time.Millisecond)
					client.waitForClose(5 * time.Second)
				})
			})

			Context("with a small message limit", func() {
				BeforeEach(func() {
					options.MaxMessageSize = 1024
				})

				It("serves requests under the limit", func() {
					client := dial(server)
					defer client.close()

					client.send(runPoll)
					Expect(client.receive()).To(Equal(askName))

					client.send(giveName)
					Expect(client.receive()).To(Equal(askFood))
				})

				It("drops a client that sends a request over the limit", func() {
					client := dial(server)
					defer client.close()

					client.send("SPRT/1.0 Q RUN Poll " + strings.Repeat("a", 8192))
					client.waitForClose(5 * time.Second)
				})

				It("drops a client once a later request goes over the limit", func() {
					client := dial(server)
					defer client.close()

					client.send(runPoll)
					Expect(client.receive()).To(Equal(askName))

					client.send("SPRT/1.0 Q RUN NameStep " + strings.Repeat("b", 8192))
					client.waitForClose(5 * time.Second)
				})
			})

			It("closes active connections when it is closed", func() {
				client := dial(server)
				defer client.close()

				client.send(runPoll)
				Expect(client.receive()).To(Equal(askName))

				Expect(server.Close()).To(Succeed())
				client.waitForClose(5 * time.Second)
			})

			It("plays TicTacToe", func() {
				client := dial(server)
				defer client.close()

				client.send("SPRT/1.0 Q RUN TicTacToe\r\n\r\n")
				Expect(client.receive()).To(Equal("SPRT/1.0 R OK MoveState ...|...|... X's turn (row col)> \r\n\r\n"))

				client.send("SPRT/1.0 Q RUN MoveState 2 2\r\n\r\n")
				Expect(client.receive()).To(Equal("SPRT/1.0 R OK MoveState ...|.X.|... O's turn (row col)> \r\n\r\n"))
			})
		})
	}

	It("produces byte identical conversations from both drivers", func() {
		script := []string{runPoll, "SPRT/1.0 Q RUN Poll\r\n\r\n", giveName, "SPRT/1.0 Q RUN NameStep a b c\r\n\r\n", giveFood}

		transcripts := make(map[string][]string)

		for _, driver := range []string{transport.DriverBlocking, transport.DriverAsync} {
			server := startServer(driver, makeOptions(nil))

			client := dial(server)
			for _, msg := range script {
				client.send(msg)
				transcripts[driver] = append(transcripts[driver], client.receive())
			}
			client.waitForClose(5 * time.Second)
			client.close()

			Expect(server.Close()).To(Succeed())
		}

		Expect(transcripts[transport.DriverAsync]).To(Equal(transcripts[transport.DriverBlocking]))
		Expect(strings.Join(transcripts[transport.DriverBlocking], "")).To(ContainSubstring("Unexpected function Poll. Expected NameStep"))
	})

	It("refuses unknown drivers", func() {
		_, err := transport.NewServer("carrier-pigeon", transport.Options{})
		Expect(err).To(MatchError(transport.ErrUnknownDriver))
	})
})
