package env_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/sethvargo/go-envconfig"
	"go.uber.org/zap/zapcore"

	"github.com/luma/sprt/internal/env"
)

var _ = Describe("env", func() {
	Describe("LoadConfigWith()", func() {
		It("has defaults", func() {
			config, err := env.LoadConfigWith(context.Background(), envconfig.MapLookuper(map[string]string{}))
			Expect(err).To(Succeed())
			Expect(config).To(Equal(&env.Config{
				IdleTimeout:    20 * time.Second,
				MaxMessageSize: 65536,
				LogLevel:       "info",
			}))
		})

		It("reads every setting", func() {
			config, err := env.LoadConfigWith(context.Background(), envconfig.MapLookuper(map[string]string{
				"SPRT_IDLE_TIMEOUT":     "5s",
				"SPRT_MAX_MESSAGE_SIZE": "1024",
				"SPRT_STATS_FILE":       "/tmp/stats.json",
				"SPRT_LOG_LEVEL":        "debug",
				"SPRT_DEBUG_HTTP":       "true",
			}))
			Expect(err).To(Succeed())
			Expect(config).To(Equal(&env.Config{
				IdleTimeout:    5 * time.Second,
				MaxMessageSize: 1024,
				StatsFile:      "/tmp/stats.json",
				LogLevel:       "debug",
				DebugHTTP:      true,
			}))
		})

		It("rejects a timeout that isn't positive", func() {
			_, err := env.LoadConfigWith(context.Background(), envconfig.MapLookuper(map[string]string{
				"SPRT_IDLE_TIMEOUT": "0s",
			}))
			Expect(err).To(HaveOccurred())
		})

		It("rejects a message size that isn't positive", func() {
			_, err := env.LoadConfigWith(context.Background(), envconfig.MapLookuper(map[string]string{
				"SPRT_MAX_MESSAGE_SIZE": "-1",
			}))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("MakeLogger()", func() {
		It("logs at the requested level", func() {
			log, err := env.MakeLogger("warn")
			Expect(err).To(Succeed())
			Expect(log.Core().Enabled(zapcore.InfoLevel)).To(BeFalse())
			Expect(log.Core().Enabled(zapcore.WarnLevel)).To(BeTrue())
		})

		It("rejects unknown levels", func() {
			_, err := env.MakeLogger("chatty")
			Expect(err).To(HaveOccurred())
		})
	})
})
