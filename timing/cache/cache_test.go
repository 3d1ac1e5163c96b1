package cache_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/snoopsim/coherence"
	"github.com/sarchlab/snoopsim/timing/cache"
)

type supply struct {
	addr     uint64
	src, dst coherence.ModuleID
	value    uint64
}

type fakeInterconnect struct {
	requests []coherence.Msg
	supplies []supply
	shared   bool
}

func (f *fakeInterconnect) Request(kind coherence.MsgKind, addr uint64, src coherence.ModuleID) {
	f.requests = append(f.requests, coherence.Msg{Kind: kind, Addr: addr, Src: src})
}

func (f *fakeInterconnect) SupplyData(addr uint64, src, dst coherence.ModuleID, value uint64) {
	f.supplies = append(f.supplies, supply{addr: addr, src: src, dst: dst, value: value})
}

func (f *fakeInterconnect) SetSharedLine(addr uint64) {
	f.shared = true
}

func (f *fakeInterconnect) SharedLine() bool {
	return f.shared
}

type fakeRequester struct {
	completions []cache.Completion
}

func (r *fakeRequester) Complete(c cache.Completion) {
	r.completions = append(r.completions, c)
}

type errorCollector struct {
	errs []error
}

func (e *errorCollector) Fatal(err error) {
	e.errs = append(e.errs, err)
}

type globalCounter struct {
	misses, upgrades int
}

func (g *globalCounter) IncCacheMisses()    { g.misses++ }
func (g *globalCounter) IncSilentUpgrades() { g.upgrades++ }

type transitionHook struct {
	records []coherence.TransitionRecord
}

func (h *transitionHook) Func(ctx sim.HookCtx) {
	h.records = append(h.records, ctx.Item.(coherence.TransitionRecord))
}

const self = coherence.ModuleID(0)
const other = coherence.ModuleID(1)

var _ = Describe("Cache", func() {
	var (
		family    *coherence.Family
		config    cache.Config
		bus       *fakeInterconnect
		requester *fakeRequester
		fatal     *errorCollector
		global    *globalCounter
		c         *cache.Cache
	)

	build := func() {
		c = cache.New(self, family, config, bus, global, fatal)
		c.SetRequester(requester)
	}

	// fill completes a miss the way the bus would: own echo, then DATA.
	fill := func(value uint64) {
		req := bus.requests[len(bus.requests)-1]
		c.Snoop(coherence.Msg{Kind: req.Kind, Addr: req.Addr, Src: self})
		c.Snoop(coherence.Msg{
			Kind: coherence.Data, Addr: req.Addr, Src: -1, Dst: self, Value: value,
		})
		bus.shared = false
	}

	BeforeEach(func() {
		family = coherence.MESI()
		config = cache.Config{Size: 4 * 1024, Associativity: 4, BlockSize: 64}
		bus = &fakeInterconnect{}
		requester = &fakeRequester{}
		fatal = &errorCollector{}
		global = &globalCounter{}
		build()
	})

	Describe("Config", func() {
		It("should accept the default geometry", func() {
			Expect(cache.DefaultConfig().Validate()).To(Succeed())
			Expect(cache.DefaultConfig().NumSets()).To(Equal(64))
		})

		It("should reject a block size that is not a power of two", func() {
			Expect(cache.Config{Size: 4096, Associativity: 4, BlockSize: 48}.Validate()).
				To(HaveOccurred())
		})

		It("should reject a size smaller than one set", func() {
			Expect(cache.Config{Size: 64, Associativity: 4, BlockSize: 64}.Validate()).
				To(HaveOccurred())
		})
	})

	Describe("Load", func() {
		It("should send GETS for the aligned line on a cold miss", func() {
			Expect(c.Load(0x1047)).To(Succeed())

			Expect(bus.requests).To(HaveLen(1))
			Expect(bus.requests[0].Kind).To(Equal(coherence.GetS))
			Expect(bus.requests[0].Addr).To(Equal(uint64(0x1040)))
			Expect(c.Busy()).To(BeTrue())
			Expect(c.State(0x1040)).To(Equal(coherence.StateISE))
			Expect(requester.completions).To(BeEmpty())

			stats := c.Stats()
			Expect(stats.Loads).To(Equal(uint64(1)))
			Expect(stats.Misses).To(Equal(uint64(1)))
			Expect(global.misses).To(Equal(1))
		})

		It("should complete with the delivered value", func() {
			Expect(c.Load(0x1000)).To(Succeed())
			fill(42)

			Expect(requester.completions).To(HaveLen(1))
			done := requester.completions[0]
			Expect(done.Kind).To(Equal(coherence.Load))
			Expect(done.Value).To(Equal(uint64(42)))
			Expect(done.Hit).To(BeFalse())
			Expect(c.Busy()).To(BeFalse())
			Expect(c.State(0x1000)).To(Equal(coherence.StateE))
		})

		It("should fill in S when another cache asserts the shared line", func() {
			Expect(c.Load(0x1000)).To(Succeed())
			bus.shared = true
			fill(1)

			Expect(c.State(0x1000)).To(Equal(coherence.StateS))
		})

		It("should hit without a bus request once the line is readable", func() {
			Expect(c.Load(0x1000)).To(Succeed())
			fill(7)

			Expect(c.Load(0x1008)).To(Succeed())

			Expect(bus.requests).To(HaveLen(1))
			Expect(requester.completions).To(HaveLen(2))
			Expect(requester.completions[1].Hit).To(BeTrue())
			Expect(requester.completions[1].Value).To(Equal(uint64(7)))
			Expect(c.Stats().Hits).To(Equal(uint64(1)))
		})
	})

	Describe("Store", func() {
		It("should upgrade E to M silently", func() {
			Expect(c.Load(0x1000)).To(Succeed())
			fill(1)

			Expect(c.Store(0x1000, 9)).To(Succeed())

			Expect(bus.requests).To(HaveLen(1))
			Expect(c.State(0x1000)).To(Equal(coherence.StateM))
			Expect(c.Stats().SilentUpgrades).To(Equal(uint64(1)))
			Expect(global.upgrades).To(Equal(1))

			value, ok := c.Value(0x1000)
			Expect(ok).To(BeTrue())
			Expect(value).To(Equal(uint64(9)))
		})

		It("should write the value once the GETM completes", func() {
			Expect(c.Store(0x2000, 5)).To(Succeed())
			Expect(bus.requests[0].Kind).To(Equal(coherence.GetM))

			fill(3)

			Expect(requester.completions[0].Kind).To(Equal(coherence.Store))
			Expect(requester.completions[0].Value).To(Equal(uint64(5)))
			value, _ := c.Value(0x2000)
			Expect(value).To(Equal(uint64(5)))
		})
	})

	Describe("Snoop", func() {
		It("should ignore requests for lines it never allocated", func() {
			c.Snoop(coherence.Msg{Kind: coherence.GetM, Addr: 0x3000, Src: other})

			Expect(bus.supplies).To(BeEmpty())
			Expect(fatal.errs).To(BeEmpty())
		})

		It("should report DATA for a line it never allocated", func() {
			c.Snoop(coherence.Msg{Kind: coherence.Data, Addr: 0x3000, Src: other})

			Expect(fatal.errs).To(HaveLen(1))
			Expect(fatal.errs[0]).To(MatchError(coherence.ErrUnexpectedMessage))
		})

		It("should supply its modified copy and keep ownership under MOSI", func() {
			family = coherence.MOSI()
			build()
			Expect(c.Store(0x1000, 11)).To(Succeed())
			fill(0)

			c.Snoop(coherence.Msg{Kind: coherence.GetS, Addr: 0x1000, Src: other})

			Expect(bus.supplies).To(ConsistOf(supply{
				addr: 0x1000, src: self, dst: other, value: 11,
			}))
			Expect(c.State(0x1000)).To(Equal(coherence.StateO))
			Expect(c.Stats().DataSupplied).To(Equal(uint64(1)))
		})

		It("should count an invalidation when another cache writes", func() {
			Expect(c.Load(0x1000)).To(Succeed())
			bus.shared = true
			fill(1)

			c.Snoop(coherence.Msg{Kind: coherence.GetM, Addr: 0x1000, Src: other})

			Expect(c.State(0x1000)).To(Equal(coherence.StateI))
			Expect(c.Stats().Invalidations).To(Equal(uint64(1)))
			_, ok := c.Value(0x1000)
			Expect(ok).To(BeFalse())
		})
	})

	It("should reject a second request while one is outstanding", func() {
		Expect(c.Load(0x1000)).To(Succeed())

		err := c.Load(0x2000)

		Expect(err).To(MatchError(coherence.ErrOutstandingRequest))
		Expect(fatal.errs).To(HaveLen(1))
	})

	Describe("allocation", func() {
		BeforeEach(func() {
			config = cache.Config{Size: 128, Associativity: 2, BlockSize: 64}
			build()

			for _, addr := range []uint64{0x0, 0x40} {
				Expect(c.Load(addr)).To(Succeed())
				bus.shared = true
				fill(addr)
			}
		})

		It("should keep a line whose set has no Invalid way", func() {
			Expect(c.Load(0x80)).To(Succeed())
			Expect(c.State(0x80)).To(Equal(coherence.StateISE))
			fill(7)

			Expect(fatal.errs).To(BeEmpty())
			Expect(c.State(0x80)).To(Equal(coherence.StateE))
			Expect(c.Stats().OverflowLines).To(Equal(uint64(1)))
			Expect(c.Lines()).To(ConsistOf(
				cache.Line{Addr: 0x0, State: coherence.StateS, Value: 0x0},
				cache.Line{Addr: 0x40, State: coherence.StateS, Value: 0x40},
				cache.Line{Addr: 0x80, State: coherence.StateE, Value: 7},
			))
			Expect(c.Dump()).To(HaveLen(3))
		})

		It("should snoop and supply a line kept outside the directory", func() {
			Expect(c.Load(0x80)).To(Succeed())
			fill(7)

			c.Snoop(coherence.Msg{Kind: coherence.GetS, Addr: 0x80, Src: other})

			Expect(c.State(0x80)).To(Equal(coherence.StateS))
			Expect(bus.supplies).To(ConsistOf(supply{addr: 0x80, src: self, dst: other, value: 7}))
		})

		It("should reuse a way whose line was invalidated", func() {
			c.Snoop(coherence.Msg{Kind: coherence.GetM, Addr: 0x0, Src: other})

			Expect(c.Load(0x80)).To(Succeed())

			Expect(c.State(0x80)).To(Equal(coherence.StateISE))
			Expect(c.State(0x0)).To(Equal(coherence.StateI))
			Expect(c.State(0x40)).To(Equal(coherence.StateS))
		})
	})

	It("should list lines that hold a copy", func() {
		Expect(c.Load(0x1000)).To(Succeed())
		fill(4)
		Expect(c.Store(0x2000, 8)).To(Succeed())

		Expect(c.Lines()).To(ConsistOf(
			cache.Line{Addr: 0x1000, State: coherence.StateE, Value: 4},
			cache.Line{Addr: 0x2000, State: coherence.StateIM, Value: 0},
		))
		Expect(c.Dump()).To(HaveLen(2))
	})

	It("should register hooks on controllers created later", func() {
		hook := &transitionHook{}
		c.AcceptHook(hook)

		Expect(c.Load(0x1000)).To(Succeed())

		Expect(hook.records).To(HaveLen(1))
		Expect(hook.records[0].From).To(Equal(coherence.StateI))
		Expect(hook.records[0].To).To(Equal(coherence.StateISE))
		Expect(hook.records[0].Module).To(Equal(self))
	})
})
