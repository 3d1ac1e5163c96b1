package system

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/snoopsim/coherence"
	"github.com/sarchlab/snoopsim/timing/bus"
)

var _ = Describe("checkLine", func() {
	var memory *bus.Memory

	BeforeEach(func() {
		memory = bus.NewMemory()
		memory.Preload(map[uint64]uint64{0x40: 1})
	})

	h := func(module int, state coherence.State, value uint64) holder {
		return holder{module: coherence.ModuleID(module), state: state, value: value}
	}

	It("should accept sharers that agree with memory", func() {
		Expect(checkLine(0x40, []holder{
			h(0, coherence.StateS, 1),
			h(1, coherence.StateS, 1),
			h(2, coherence.StateIS, 0),
		}, memory)).To(Succeed())
	})

	It("should accept sharers that agree with the owner", func() {
		Expect(checkLine(0x40, []holder{
			h(0, coherence.StateO, 7),
			h(1, coherence.StateS, 7),
		}, memory)).To(Succeed())
	})

	It("should reject a sharer with a stale value", func() {
		err := checkLine(0x40, []holder{
			h(0, coherence.StateS, 1),
			h(1, coherence.StateS, 2),
		}, memory)

		Expect(err).To(MatchError(ErrCoherence))
	})

	It("should reject two owners", func() {
		err := checkLine(0x40, []holder{
			h(0, coherence.StateO, 1),
			h(1, coherence.StateM, 1),
		}, memory)

		Expect(err).To(MatchError(ErrCoherence))
	})

	It("should reject a sharer next to a modified copy", func() {
		err := checkLine(0x40, []holder{
			h(0, coherence.StateM, 3),
			h(1, coherence.StateS, 3),
		}, memory)

		Expect(err).To(MatchError(ContainSubstring("cache 1 is S")))
	})

	It("should allow an upgrading sharer next to a modified copy", func() {
		Expect(checkLine(0x40, []holder{
			h(0, coherence.StateM, 3),
			h(1, coherence.StateSM, 1),
			h(2, coherence.StateIM, 0),
		}, memory)).To(Succeed())
	})
})
