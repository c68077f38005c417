package metrics_test

import (
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/sprt/internal/metrics"
)

var _ = Describe("metrics", func() {
	It("does nothing when nil", func() {
		var m *metrics.Metrics

		Expect(func() {
			m.SessionStarted("Poll")
			m.ConnectionAccepted("blocking")
			m.IdleTimeout("async")
			m.ResponseSent("OK")
			m.QueryAnswered("NOERROR")
			m.ObserveHandling("async", time.Millisecond)
		}).NotTo(Panic())

		_, err := m.Gatherer().Gather()
		Expect(err).To(Succeed())
	})

	It("exposes what was recorded", func() {
		m := metrics.New()
		m.SessionStarted("Poll")
		m.SessionStarted("Poll")
		m.ConnectionAccepted("blocking")
		m.ResponseSent("ERROR")

		rec := httptest.NewRecorder()
		m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

		body := rec.Body.String()
		Expect(body).To(ContainSubstring(`sprt_sessions_started_total{app="Poll"} 2`))
		Expect(body).To(ContainSubstring(`sprt_connections_total{driver="blocking"} 1`))
		Expect(body).To(ContainSubstring(`sprt_responses_total{status="ERROR"} 1`))
	})

	It("keeps separate instances apart", func() {
		a, b := metrics.New(), metrics.New()
		a.SessionStarted("Poll")

		families, err := b.Gatherer().Gather()
		Expect(err).To(Succeed())

		for _, family := range families {
			Expect(family.GetName()).NotTo(Equal("sprt_sessions_started_total"))
		}
	})
})
