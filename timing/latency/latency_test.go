package latency_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/snoopsim/timing/latency"
)

var _ = Describe("Latency", func() {
	var table *latency.Table

	BeforeEach(func() {
		table = latency.NewTable()
	})

	Describe("Default Timing Values", func() {
		It("should charge memory more than a cache-to-cache transfer", func() {
			Expect(table.DataLatency(latency.FromMemory)).To(Equal(uint64(100)))
			Expect(table.DataLatency(latency.FromCache)).To(Equal(uint64(20)))
		})

		It("should have a one cycle hit", func() {
			Expect(table.HitLatency()).To(Equal(uint64(1)))
		})

		It("should run at 1 GHz", func() {
			Expect(table.Freq()).To(Equal(1 * sim.GHz))
		})

		It("should be valid", func() {
			Expect(table.Config().Validate()).To(Succeed())
		})
	})

	Describe("Custom config", func() {
		It("should use the configured latencies", func() {
			config := latency.DefaultTimingConfig()
			config.MemoryLatency = 7
			config.CacheToCacheLatency = 3

			table = latency.NewTableWithConfig(config)

			Expect(table.DataLatency(latency.FromMemory)).To(Equal(uint64(7)))
			Expect(table.DataLatency(latency.FromCache)).To(Equal(uint64(3)))
		})
	})

	Describe("Validate", func() {
		It("should reject a zero memory latency", func() {
			config := latency.DefaultTimingConfig()
			config.MemoryLatency = 0
			Expect(config.Validate()).To(MatchError(ContainSubstring("memory_latency")))
		})

		It("should reject a non-positive clock", func() {
			config := latency.DefaultTimingConfig()
			config.ClockGHz = 0
			Expect(config.Validate()).To(HaveOccurred())
		})
	})

	Describe("Clone", func() {
		It("should not share state with the original", func() {
			config := latency.DefaultTimingConfig()
			clone := config.Clone()
			clone.HitLatency = 9

			Expect(config.HitLatency).To(Equal(uint64(1)))
		})
	})

	Describe("Save and Load", func() {
		It("should keep defaults for fields missing from the file", func() {
			dir := GinkgoT().TempDir()
			path := filepath.Join(dir, "timing.json")
			Expect(os.WriteFile(path, []byte(`{"memory_latency": 250}`), 0644)).To(Succeed())

			config, err := latency.LoadConfig(path)

			Expect(err).NotTo(HaveOccurred())
			Expect(config.MemoryLatency).To(Equal(uint64(250)))
			Expect(config.CacheToCacheLatency).To(Equal(uint64(20)))
		})

		It("should load what it saved", func() {
			dir := GinkgoT().TempDir()
			path := filepath.Join(dir, "timing.json")
			config := latency.DefaultTimingConfig()
			config.ArbitrationLatency = 4

			Expect(config.SaveConfig(path)).To(Succeed())
			loaded, err := latency.LoadConfig(path)

			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(config))
		})

		It("should fail on a missing file", func() {
			_, err := latency.LoadConfig("/nonexistent/timing.json")
			Expect(err).To(MatchError(ContainSubstring("failed to read")))
		})
	})
})
