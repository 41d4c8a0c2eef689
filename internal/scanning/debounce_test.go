package scanning

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"diecastscan/internal/catalog"
)

var _ = Describe("DebounceGate", func() {
	var gate DebounceGate

	BeforeEach(func() {
		gate = DebounceGate{}
	})

	It("should handle a fresh code", func() {
		Expect(gate.ShouldHandle("HYW54")).To(BeTrue())
	})

	It("should never handle an empty code", func() {
		Expect(gate.ShouldHandle("")).To(BeFalse())
	})

	When("a code is armed", func() {
		BeforeEach(func() {
			gate.Arm("HYW54")
		})

		It("should suppress the same code", func() {
			Expect(gate.ShouldHandle("HYW54")).To(BeFalse())
		})

		It("should still handle a different code", func() {
			Expect(gate.ShouldHandle("GRM04")).To(BeTrue())
		})

		It("should expose the armed code", func() {
			Expect(gate.Last()).To(Equal("HYW54"))
		})

		When("the gate is reset", func() {
			BeforeEach(func() {
				gate.Reset()
			})

			It("should handle the same code again", func() {
				Expect(gate.ShouldHandle("HYW54")).To(BeTrue())
			})
		})
	})
})

var _ = Describe("Select", func() {
	variant := func() catalog.Variant {
		return catalog.Variant{Desc: "Red"}
	}

	When("the entry has exactly one variant", func() {
		It("should auto-resolve to it", func() {
			variants := []catalog.Variant{variant()}
			outcome, chosen := Select(variants)
			Expect(outcome).To(Equal(OutcomeAutoResolved))
			Expect(chosen).To(Equal(&variants[0]))
		})
	})

	When("the entry has several variants", func() {
		It("should await a choice without picking one", func() {
			outcome, chosen := Select([]catalog.Variant{variant(), variant()})
			Expect(outcome).To(Equal(OutcomeAwaitingChoice))
			Expect(chosen).To(BeNil())
		})
	})

	When("the entry has no variants", func() {
		It("should report the distinct empty outcome", func() {
			outcome, chosen := Select(nil)
			Expect(outcome).To(Equal(OutcomeNoVariants))
			Expect(chosen).To(BeNil())
		})
	})
})
