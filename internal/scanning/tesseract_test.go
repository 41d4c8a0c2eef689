package scanning

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const sampleTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t640\t480\t-1\t\n" +
	"4\t1\t1\t1\t1\t0\t100\t100\t200\t40\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t100\t100\t90\t40\t96\tHYW54\n" +
	"5\t1\t1\t1\t1\t2\t200\t105\t100\t35\t91\tN521\n" +
	"5\t1\t1\t1\t2\t1\t100\t200\t150\t30\t88\tMAINLINE\n" +
	"5\t1\t2\t1\t1\t1\t100\t300\t80\t25\t70\t2025\n"

var _ = Describe("parseTSV", func() {
	var (
		input string
		spans []TextSpan
		err   error
	)

	JustBeforeEach(func() {
		spans, err = parseTSV(input)
	})

	When("parsing well-formed output", func() {
		BeforeEach(func() {
			input = sampleTSV
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should group words into line spans", func() {
			Expect(spans).To(HaveLen(3))
			Expect(spans[0].Text).To(Equal("HYW54 N521"))
			Expect(spans[1].Text).To(Equal("MAINLINE"))
			Expect(spans[2].Text).To(Equal("2025"))
		})

		It("should keep one glyph box per word", func() {
			Expect(spans[0].Glyphs).To(HaveLen(2))
			Expect(spans[0].Glyphs[0]).To(Equal(Box{Left: 100, Top: 100, Right: 190, Bottom: 140}))
		})

		It("should aggregate line geometry across words", func() {
			Expect(spans[0].Bounds()).To(Equal(Box{Left: 100, Top: 100, Right: 300, Bottom: 140}))
		})
	})

	When("the output has no word rows", func() {
		BeforeEach(func() {
			input = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
				"1\t1\t0\t0\t0\t0\t0\t0\t640\t480\t-1\t\n"
		})

		It("should return no spans", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(spans).To(BeEmpty())
		})
	})

	When("a word row carries malformed geometry", func() {
		BeforeEach(func() {
			input = strings.ReplaceAll(sampleTSV, "\t100\t100\t90\t40\t96\tHYW54", "\tx\t100\t90\t40\t96\tHYW54")
		})

		It("should return an error", func() {
			Expect(err).To(HaveOccurred())
		})
	})

	When("word rows carry blank text", func() {
		BeforeEach(func() {
			input = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
				"5\t1\t1\t1\t1\t1\t100\t100\t90\t40\t95\t \n"
		})

		It("should skip them", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(spans).To(BeEmpty())
		})
	})
})
