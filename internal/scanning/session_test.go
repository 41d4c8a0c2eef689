package scanning

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/google/uuid"

	"diecastscan/internal/catalog"
)

// mockSource serves pre-created frames
type mockSource struct {
	frames []*Frame
	err    error
}

func (m *mockSource) Capture(ctx context.Context) (*Frame, error) {
	if m.err != nil {
		return nil, m.err
	}
	if len(m.frames) == 0 {
		return nil, ErrNoFrame
	}
	frame := m.frames[0]
	m.frames = m.frames[1:]
	return frame, nil
}

// mockEngine returns preset spans
type mockEngine struct {
	spans []TextSpan
	err   error
}

func (m *mockEngine) Recognize(ctx context.Context, imagePath string) ([]TextSpan, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.spans, nil
}

// mockResolver is a mock implementation of Resolver
type mockResolver struct {
	codes    []string
	codesErr error

	car           *catalog.Car
	identifyErr   error
	identifyCalls []string
	identifyAttrs []*catalog.IdentifyAttrs

	item     *catalog.CollectionItem
	addErr   error
	addCalls []uuid.UUID
}

func (m *mockResolver) ToyNumbers(ctx context.Context) ([]string, error) {
	if m.codesErr != nil {
		return nil, m.codesErr
	}
	return m.codes, nil
}

func (m *mockResolver) Identify(ctx context.Context, code string, attrs *catalog.IdentifyAttrs) (*catalog.Car, error) {
	m.identifyCalls = append(m.identifyCalls, code)
	m.identifyAttrs = append(m.identifyAttrs, attrs)
	if m.identifyErr != nil {
		return nil, m.identifyErr
	}
	return m.car, nil
}

func (m *mockResolver) AddToCollection(ctx context.Context, variantID uuid.UUID) (*catalog.CollectionItem, error) {
	m.addCalls = append(m.addCalls, variantID)
	if m.addErr != nil {
		return nil, m.addErr
	}
	return m.item, nil
}

// mockExtractor returns a preset extraction
type mockExtractor struct {
	extraction *RemoteExtraction
	err        error
	calls      int
}

func (m *mockExtractor) Extract(ctx context.Context, frame *Frame) (*RemoteExtraction, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.extraction, nil
}

// mockHandler records outcomes
type mockHandler struct {
	added      []*catalog.CollectionItem
	choices    []*catalog.Car
	chooseID   uuid.UUID
	chooseOK   bool
	noVariants []string
	notFound   []string
	failures   []error
}

func (m *mockHandler) VariantAdded(car *catalog.Car, item *catalog.CollectionItem) {
	m.added = append(m.added, item)
}

func (m *mockHandler) ChooseVariant(car *catalog.Car) (uuid.UUID, bool) {
	m.choices = append(m.choices, car)
	return m.chooseID, m.chooseOK
}

func (m *mockHandler) NoVariants(code string) {
	m.noVariants = append(m.noVariants, code)
}

func (m *mockHandler) NotFound(code string) {
	m.notFound = append(m.notFound, code)
}

func (m *mockHandler) Failure(code string, err error) {
	m.failures = append(m.failures, err)
}

func tempFrame() *Frame {
	path := filepath.Join(GinkgoT().TempDir(), "frame.png")
	Expect(os.WriteFile(path, []byte("fake image"), 0644)).To(Succeed())
	return &Frame{Path: path}
}

var _ = Describe("Session", func() {
	var (
		source    *mockSource
		engine    *mockEngine
		resolver  *mockResolver
		extractor *mockExtractor
		handler   *mockHandler
		mode      Mode
		session   *Session
		frame     *Frame
		variantID uuid.UUID
		carID     uuid.UUID
	)

	BeforeEach(func() {
		variantID = uuid.New()
		carID = uuid.New()
		frame = tempFrame()
		source = &mockSource{frames: []*Frame{frame}}
		engine = &mockEngine{spans: []TextSpan{span("HYW54-N521", 120, 40)}}
		resolver = &mockResolver{
			codes: []string{"HYW54", "GRM04"},
			car: &catalog.Car{
				ID:   carID,
				Name: "Twin Mill",
				Variants: []catalog.Variant{
					{ID: variantID, CarID: carID, ToyNumber: "HYW54", Desc: "Chrome"},
				},
			},
			item: &catalog.CollectionItem{ID: uuid.New(), VariantID: variantID},
		}
		extractor = &mockExtractor{}
		handler = &mockHandler{}
		mode = ModeBasic
	})

	JustBeforeEach(func() {
		session = NewSession(SessionConfig{
			Source:    source,
			Engine:    engine,
			Resolver:  resolver,
			Extractor: extractor,
			Handler:   handler,
			Mode:      mode,
		})
		session.loadIndex(context.Background())
		session.cycle(context.Background())
	})

	When("a frame yields an indexed code with a single variant", func() {
		It("should resolve the code exactly once", func() {
			Expect(resolver.identifyCalls).To(Equal([]string{"HYW54"}))
		})

		It("should not pass auxiliary attributes on the primary path", func() {
			Expect(resolver.identifyAttrs).To(Equal([]*catalog.IdentifyAttrs{nil}))
		})

		It("should auto-add the sole variant without presenting a choice", func() {
			Expect(resolver.addCalls).To(Equal([]uuid.UUID{variantID}))
			Expect(handler.choices).To(BeEmpty())
			Expect(handler.added).To(HaveLen(1))
		})

		It("should not consult the fallback extractor", func() {
			Expect(extractor.calls).To(BeZero())
		})

		It("should dispose the frame", func() {
			Expect(frame.Path).NotTo(BeAnExistingFile())
		})

		It("should reset the debounce gate for the next item", func() {
			gate := session.State().Gate
			Expect(gate.Last()).To(BeEmpty())
		})

		It("should clear both busy flags", func() {
			Expect(session.State().IsProcessing).To(BeFalse())
			Expect(session.State().IsCapturing).To(BeFalse())
		})
	})

	When("the entry has several variants", func() {
		BeforeEach(func() {
			resolver.car.Variants = append(resolver.car.Variants, catalog.Variant{
				ID: uuid.New(), CarID: carID, ToyNumber: "HYW54", Desc: "Red",
			})
		})

		When("the user picks a variant", func() {
			BeforeEach(func() {
				handler.chooseID = variantID
				handler.chooseOK = true
			})

			It("should present the full variant list", func() {
				Expect(handler.choices).To(HaveLen(1))
				Expect(handler.choices[0].Variants).To(HaveLen(2))
			})

			It("should add the chosen variant", func() {
				Expect(resolver.addCalls).To(Equal([]uuid.UUID{variantID}))
			})
		})

		When("the user declines", func() {
			BeforeEach(func() {
				handler.chooseOK = false
			})

			It("should not insert anything", func() {
				Expect(resolver.addCalls).To(BeEmpty())
				Expect(handler.added).To(BeEmpty())
			})

			It("should still dispose the frame", func() {
				Expect(frame.Path).NotTo(BeAnExistingFile())
			})
		})

		When("the choice is not among the candidates", func() {
			BeforeEach(func() {
				handler.chooseID = uuid.New()
				handler.chooseOK = true
			})

			It("should not insert anything", func() {
				Expect(resolver.addCalls).To(BeEmpty())
			})
		})
	})

	When("the entry resolves with no variants", func() {
		BeforeEach(func() {
			resolver.car.Variants = nil
		})

		It("should report the empty outcome distinctly", func() {
			Expect(handler.noVariants).To(Equal([]string{"HYW54"}))
			Expect(handler.notFound).To(BeEmpty())
			Expect(handler.failures).To(BeEmpty())
		})
	})

	When("the code has no catalog entry", func() {
		BeforeEach(func() {
			resolver.identifyErr = ErrNotFound
		})

		It("should report not-found without a collection mutation", func() {
			Expect(handler.notFound).To(Equal([]string{"HYW54"}))
			Expect(resolver.addCalls).To(BeEmpty())
		})

		It("should still dispose the frame", func() {
			Expect(frame.Path).NotTo(BeAnExistingFile())
		})
	})

	When("resolution fails with a transport error", func() {
		BeforeEach(func() {
			resolver.identifyErr = errors.New("connection refused")
		})

		It("should surface the failure", func() {
			Expect(handler.failures).To(HaveLen(1))
		})
	})

	When("the collection insert fails", func() {
		BeforeEach(func() {
			resolver.addErr = errors.New("boom")
		})

		It("should surface the failure without reporting an addition", func() {
			Expect(handler.failures).To(HaveLen(1))
			Expect(handler.added).To(BeEmpty())
		})
	})

	When("nothing is recognized in basic mode", func() {
		BeforeEach(func() {
			engine.spans = nil
		})

		It("should end the cycle quietly", func() {
			Expect(resolver.identifyCalls).To(BeEmpty())
			Expect(extractor.calls).To(BeZero())
			Expect(handler.failures).To(BeEmpty())
		})

		It("should still dispose the frame", func() {
			Expect(frame.Path).NotTo(BeAnExistingFile())
		})
	})

	Describe("enhanced mode fallback", func() {
		BeforeEach(func() {
			mode = ModeEnhanced
			engine.spans = nil
		})

		When("the extractor returns a confident code", func() {
			BeforeEach(func() {
				code := "GRM04"
				year := 2025
				extractor.extraction = &RemoteExtraction{
					ToyNumber:   &code,
					ReleaseYear: &year,
					SeriesName:  "Wild Widebody",
					BodyColor:   "Chrome",
					Confidence:  0.92,
				}
			})

			It("should resolve the extracted code with its attributes", func() {
				Expect(resolver.identifyCalls).To(Equal([]string{"GRM04"}))
				Expect(resolver.identifyAttrs).To(HaveLen(1))
				Expect(resolver.identifyAttrs[0]).NotTo(BeNil())
				Expect(resolver.identifyAttrs[0].SeriesName).To(Equal("Wild Widebody"))
				Expect(*resolver.identifyAttrs[0].ReleaseYear).To(Equal(2025))
			})
		})

		When("the extraction confidence is too low", func() {
			BeforeEach(func() {
				code := "GRM04"
				extractor.extraction = &RemoteExtraction{ToyNumber: &code, Confidence: 0.4}
			})

			It("should treat it as no detection", func() {
				Expect(resolver.identifyCalls).To(BeEmpty())
			})
		})

		When("the extraction has no code", func() {
			BeforeEach(func() {
				extractor.extraction = &RemoteExtraction{Confidence: 0.9}
			})

			It("should treat it as no detection", func() {
				Expect(resolver.identifyCalls).To(BeEmpty())
			})
		})

		When("the extractor fails", func() {
			BeforeEach(func() {
				extractor.err = errors.New("timeout")
			})

			It("should continue without raising", func() {
				Expect(resolver.identifyCalls).To(BeEmpty())
				Expect(handler.failures).To(BeEmpty())
			})

			It("should still dispose the frame", func() {
				Expect(frame.Path).NotTo(BeAnExistingFile())
			})
		})

		When("primary recognition succeeds anyway", func() {
			BeforeEach(func() {
				engine.spans = []TextSpan{span("HYW54", 120, 40)}
			})

			It("should not consult the extractor", func() {
				Expect(extractor.calls).To(BeZero())
				Expect(resolver.identifyCalls).To(Equal([]string{"HYW54"}))
			})
		})
	})

	When("the reference code load fails", func() {
		BeforeEach(func() {
			resolver.codesErr = errors.New("service unavailable")
			engine.spans = []TextSpan{span("GTK21", 120, 40)}
		})

		It("should degrade to generic pattern matching", func() {
			Expect(resolver.identifyCalls).To(Equal([]string{"GTK21"}))
		})
	})

	When("the capture fails", func() {
		BeforeEach(func() {
			source.err = errors.New("device busy")
		})

		It("should end the cycle without recognition", func() {
			Expect(resolver.identifyCalls).To(BeEmpty())
		})

		It("should clear the capturing flag", func() {
			Expect(session.State().IsCapturing).To(BeFalse())
		})
	})
})
