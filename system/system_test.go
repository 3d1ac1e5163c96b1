package system_test

import (
	"fmt"
	"math/rand"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/snoopsim/coherence"
	"github.com/sarchlab/snoopsim/loader"
	"github.com/sarchlab/snoopsim/system"
	"github.com/sarchlab/snoopsim/timing/bus"
	"github.com/sarchlab/snoopsim/timing/core"
	"github.com/sarchlab/snoopsim/timing/latency"
)

func traces(texts ...string) []*loader.Trace {
	out := make([]*loader.Trace, 0, len(texts))
	for i, text := range texts {
		t, err := loader.Parse(strings.NewReader(text), fmt.Sprintf("p%d", i))
		Expect(err).NotTo(HaveOccurred())
		out = append(out, t)
	}
	return out
}

func fastTiming() *latency.TimingConfig {
	config := latency.DefaultTimingConfig()
	config.MemoryLatency = 10
	config.CacheToCacheLatency = 4
	return config
}

type itemRecorder struct {
	transitions  int
	transactions int
}

func (r *itemRecorder) Func(ctx sim.HookCtx) {
	switch ctx.Item.(type) {
	case coherence.TransitionRecord:
		r.transitions++
	case bus.Transaction:
		r.transactions++
	}
}

var _ = Describe("System", func() {
	var builder system.Builder

	BeforeEach(func() {
		builder = system.MakeBuilder().WithTimingConfig(fastTiming())
	})

	run := func(family *coherence.Family, texts ...string) (*system.System, *system.Stats) {
		s, err := builder.WithFamily(family).Build(traces(texts...))
		Expect(err).NotTo(HaveOccurred())

		stats, err := s.Run()
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Finished()).To(BeTrue())

		return s, stats
	}

	It("should leave two MESI readers in Shared", func() {
		s, stats := run(coherence.MESI(), "r 0x40\n", "r 0x40\n")

		Expect(s.Caches()[0].State(0x40)).To(Equal(coherence.StateS))
		Expect(s.Caches()[1].State(0x40)).To(Equal(coherence.StateS))
		Expect(stats.CacheMisses).To(Equal(uint64(2)))
		Expect(stats.SilentUpgrades).To(BeZero())
		Expect(stats.Bus.CacheToCache).To(Equal(uint64(1)))
	})

	It("should upgrade a lone MESI reader without a bus transaction", func() {
		s, stats := run(coherence.MESI(), "r 0x40\nw 0x40 5\n")

		Expect(s.Caches()[0].State(0x40)).To(Equal(coherence.StateM))
		Expect(stats.CacheMisses).To(Equal(uint64(1)))
		Expect(stats.SilentUpgrades).To(Equal(uint64(1)))
		Expect(stats.Bus.Transactions).To(Equal(uint64(1)))
	})

	It("should need a GETM for the same upgrade under MSI", func() {
		s, stats := run(coherence.MSI(), "r 0x40\nw 0x40 5\n")

		Expect(s.Caches()[0].State(0x40)).To(Equal(coherence.StateM))
		Expect(stats.CacheMisses).To(Equal(uint64(2)))
		Expect(stats.SilentUpgrades).To(BeZero())
		Expect(stats.Bus.GetM).To(Equal(uint64(1)))
	})

	It("should keep a read MOSI line as Owner", func() {
		builder = builder.WithAccessLog()

		s, stats := run(coherence.MOSI(),
			"w 0x40 3\n",
			"r 0x1000\nr 0x40\n",
		)

		Expect(s.Caches()[0].State(0x40)).To(Equal(coherence.StateO))
		Expect(s.Caches()[1].State(0x40)).To(Equal(coherence.StateS))
		Expect(stats.Bus.CacheToCache).To(Equal(uint64(1)))

		log := s.Cores()[1].AccessLog()
		Expect(log[1].Value).To(Equal(uint64(3)))
	})

	It("should land every later MOESI reader in Shared next to the Owner", func() {
		builder = builder.WithAccessLog()

		s, stats := run(coherence.MOESI(),
			"w 0x40 3\n",
			"r 0x1000\nr 0x40\n",
			"r 0x1000\nr 0x2000\nr 0x3000\nr 0x40\n",
		)

		Expect(s.Caches()[0].State(0x40)).To(Equal(coherence.StateO))
		Expect(s.Caches()[1].State(0x40)).To(Equal(coherence.StateS))
		Expect(s.Caches()[2].State(0x40)).To(Equal(coherence.StateS))
		Expect(stats.Bus.CacheToCache).To(BeNumerically(">=", 2))

		log := s.Cores()[2].AccessLog()
		Expect(log[len(log)-1].Value).To(Equal(uint64(3)))
	})

	It("should keep more lines than a set has ways", func() {
		var trace strings.Builder
		for i := 0; i < 9; i++ {
			fmt.Fprintf(&trace, "r 0x%x\n", i*0x1000)
		}

		s, stats := run(coherence.MESI(), trace.String(), "r 0x8000\n")

		Expect(stats.CacheMisses).To(Equal(uint64(10)))
		Expect(s.Caches()[0].Stats().OverflowLines).To(Equal(uint64(1)))
		Expect(s.Caches()[0].Lines()).To(HaveLen(9))
		for i := 0; i < 8; i++ {
			Expect(s.Caches()[0].State(uint64(i * 0x1000))).To(Equal(coherence.StateE))
		}
		Expect(s.Caches()[0].State(0x8000)).To(Equal(coherence.StateS))
		Expect(s.Caches()[1].State(0x8000)).To(Equal(coherence.StateS))
	})

	It("should start from preloaded memory", func() {
		builder = builder.WithAccessLog().WithMemory(map[uint64]uint64{0x80: 42})

		s, _ := run(coherence.MOESI(), "r 0x80\n")

		Expect(s.Cores()[0].AccessLog()[0].Value).To(Equal(uint64(42)))
		Expect(s.Caches()[0].State(0x80)).To(Equal(coherence.StateE))
	})

	It("should report hook items from controllers and the bus", func() {
		recorder := &itemRecorder{}
		builder = builder.WithHook(recorder)

		run(coherence.MESI(), "r 0x40\n", "w 0x40 1\n")

		Expect(recorder.transactions).To(Equal(2))
		Expect(recorder.transitions).To(BeNumerically(">=", 6))
	})

	Describe("failures", func() {
		It("should stop at the cycle limit", func() {
			config := fastTiming()
			config.MaxCycles = 5
			s, err := builder.WithTimingConfig(config).Build(traces("r 0x40\nr 0x80\n"))
			Expect(err).NotTo(HaveOccurred())

			_, err = s.Run()

			Expect(err).To(MatchError(system.ErrMaxCycles))
			Expect(s.Cycle()).To(Equal(uint64(5)))
		})

		It("should reject an empty system", func() {
			_, err := builder.Build(nil)
			Expect(err).To(HaveOccurred())
		})

		It("should reject an invalid timing config", func() {
			config := fastTiming()
			config.MemoryLatency = 0

			_, err := builder.WithTimingConfig(config).Build(traces("r 0x40\n"))

			Expect(err).To(MatchError(ContainSubstring("memory_latency")))
		})
	})

	for _, family := range coherence.Families() {
		family := family

		Describe(family.Name(), func() {
			It("should let readers observe one writer's stores in order", func() {
				var writer strings.Builder
				for i := 1; i <= 20; i++ {
					fmt.Fprintf(&writer, "w 0x40 %d\nr 0x1000\n", i)
				}
				reader := strings.Repeat("r 0x40\n", 30)

				builder = builder.WithAccessLog()
				s, _ := run(family, writer.String(), reader, reader, reader)

				for _, p := range s.Cores()[1:] {
					last := uint64(0)
					for _, access := range p.AccessLog() {
						Expect(access.Value).To(BeNumerically(">=", last))
						Expect(access.Value).To(BeNumerically("<=", 20))
						last = access.Value
					}
				}
			})

			It("should keep every invariant under random sharing", func() {
				rng := rand.New(rand.NewSource(int64(len(family.Name()))))
				texts := make([]string, 4)
				for p := range texts {
					var b strings.Builder
					for i := 0; i < 150; i++ {
						addr := uint64(rng.Intn(4)) * 64
						if rng.Intn(3) == 0 {
							fmt.Fprintf(&b, "w 0x%x %d\n", addr, p*1000+i+1)
						} else {
							fmt.Fprintf(&b, "r 0x%x\n", addr)
						}
					}
					texts[p] = b.String()
				}

				builder = builder.WithAccessLog()
				s, stats := run(family, texts...)

				Expect(stats.Retired()).To(Equal(uint64(600)))
				Expect(system.CheckInvariants(s.Caches(), s.Memory())).To(Succeed())

				for line := uint64(0); line < 4; line++ {
					addr := line * 64
					Expect(finalValue(s, addr)).To(Equal(lastStore(s.Cores(), addr)))
				}
			})
		})
	}
})

// finalValue returns the value of addr from its owner, or memory.
func finalValue(s *system.System, addr uint64) uint64 {
	for _, c := range s.Caches() {
		if c.State(addr).IsOwner() {
			value, _ := c.Value(addr)
			return value
		}
	}
	return s.Memory().Peek(addr)
}

// lastStore returns the value of the store to addr that completed last.
func lastStore(cores []*core.Core, addr uint64) uint64 {
	var (
		value uint64
		when  uint64
		found bool
	)

	for _, p := range cores {
		for _, access := range p.AccessLog() {
			if !access.Op.Write || access.Op.Addr != addr {
				continue
			}
			if !found || access.DoneCycle >= when {
				value, when, found = access.Value, access.DoneCycle, true
			}
		}
	}

	return value
}
