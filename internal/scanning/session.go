package scanning

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"diecastscan/internal/catalog"
)

// Mode selects which recognition strategies a session runs
type Mode string

const (
	// ModeBasic uses local text recognition only
	ModeBasic Mode = "basic"
	// ModeEnhanced adds the remote vision extractor as a fallback when
	// local recognition finds nothing
	ModeEnhanced Mode = "enhanced"
)

// fallbackConfidenceFloor is the minimum confidence at which a fallback
// extraction is accepted as a detection
const fallbackConfidenceFloor = 0.5

const (
	defaultIdleDelay = 1500 * time.Millisecond
	defaultPollDelay = 250 * time.Millisecond
)

// ScanState is the per-session mutable state. The two busy flags guarantee
// at most one in-flight camera operation and at most one in-flight
// end-to-end cycle; both must be clear before a new cycle starts.
type ScanState struct {
	Gate         DebounceGate
	IsProcessing bool
	IsCapturing  bool
	Mode         Mode
}

// Resolver is the slice of the catalog client the session depends on
type Resolver interface {
	ToyNumbers(ctx context.Context) ([]string, error)
	Identify(ctx context.Context, code string, attrs *catalog.IdentifyAttrs) (*catalog.Car, error)
	AddToCollection(ctx context.Context, variantID uuid.UUID) (*catalog.CollectionItem, error)
}

// Handler receives the user-visible outcomes of scan cycles
type Handler interface {
	// VariantAdded reports a completed cycle that inserted into the
	// collection
	VariantAdded(car *catalog.Car, item *catalog.CollectionItem)
	// ChooseVariant presents an ambiguous entry. Implementations block
	// until the user picks a variant or declines; there is no timeout.
	ChooseVariant(car *catalog.Car) (uuid.UUID, bool)
	// NoVariants reports an entry that resolved with an empty variant list
	NoVariants(code string)
	// NotFound reports a code with no catalog entry
	NotFound(code string)
	// Failure reports a resolution or insertion error
	Failure(code string, err error)
}

// SessionConfig carries the dependencies and tuning for a scan session
type SessionConfig struct {
	Source    Source
	Engine    Engine
	Resolver  Resolver
	Extractor Extractor // required for ModeEnhanced
	Handler   Handler
	Mode      Mode
	IdleDelay time.Duration
	PollDelay time.Duration
}

// Session drives the capture-recognize-resolve loop for one scanning
// session. All stages run sequentially within a cycle; nothing is shared
// across concurrent mutators.
type Session struct {
	source     Source
	engine     Engine
	resolver   Resolver
	extractor  Extractor
	handler    Handler
	recognizer *Recognizer
	state      ScanState
	idleDelay  time.Duration
	pollDelay  time.Duration
}

// NewSession creates a Session from config, applying default delays
func NewSession(cfg SessionConfig) *Session {
	if cfg.IdleDelay <= 0 {
		cfg.IdleDelay = defaultIdleDelay
	}
	if cfg.PollDelay <= 0 {
		cfg.PollDelay = defaultPollDelay
	}
	mode := cfg.Mode
	if mode == "" {
		mode = ModeBasic
	}
	return &Session{
		source:    cfg.Source,
		engine:    cfg.Engine,
		resolver:  cfg.Resolver,
		extractor: cfg.Extractor,
		handler:   cfg.Handler,
		state:     ScanState{Mode: mode},
		idleDelay: cfg.IdleDelay,
		pollDelay: cfg.PollDelay,
	}
}

// State returns a snapshot of the session state
func (s *Session) State() ScanState {
	return s.state
}

// Run loads the reference code index and loops cycles until ctx is
// canceled. Between cycles a fixed idle delay throttles the capture rate; a
// shorter poll delay is used while a previous cycle is still in flight.
func (s *Session) Run(ctx context.Context) error {
	s.loadIndex(ctx)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if s.state.IsProcessing || s.state.IsCapturing {
			if !sleep(ctx, s.pollDelay) {
				return ctx.Err()
			}
			continue
		}

		s.cycle(ctx)

		if !sleep(ctx, s.idleDelay) {
			return ctx.Err()
		}
	}
}

// loadIndex fetches the reference code index once per session. Best effort:
// on failure the session degrades to generic pattern matching.
func (s *Session) loadIndex(ctx context.Context) {
	codes, err := s.resolver.ToyNumbers(ctx)
	if err != nil {
		slog.Warn("Failed to load reference codes, falling back to pattern matching", "error", err)
		codes = nil
	}
	index := NewCodeIndex(codes)
	slog.Info("Reference code index loaded", "codes", index.Len())
	s.recognizer = NewRecognizer(index)
}

// cycle runs one capture-recognize-resolve pass. The frame is discarded
// unconditionally at the end, whichever branch was taken.
func (s *Session) cycle(ctx context.Context) {
	s.state.IsCapturing = true
	frame, err := s.source.Capture(ctx)
	s.state.IsCapturing = false
	if err != nil {
		if !errors.Is(err, ErrNoFrame) && !errors.Is(err, context.Canceled) {
			slog.Warn("Capture failed", "error", err)
		}
		return
	}
	defer frame.Discard()

	s.state.IsProcessing = true
	defer func() { s.state.IsProcessing = false }()

	detection := s.detect(ctx, frame)
	if detection == nil {
		return
	}

	if !s.state.Gate.ShouldHandle(detection.Code) {
		return
	}
	s.state.Gate.Arm(detection.Code)
	defer s.state.Gate.Reset()

	s.handleDetection(ctx, detection)
}

// detect runs primary recognition and, when it misses in enhanced mode, the
// fallback extractor. Recognition misses and extraction failures are not
// errors; they end the cycle quietly.
func (s *Session) detect(ctx context.Context, frame *Frame) *Detection {
	spans, err := s.engine.Recognize(ctx, frame.Path)
	if err != nil {
		slog.Warn("Text recognition failed", "error", err)
		spans = nil
	}

	if detection := s.recognizer.Match(spans); detection != nil {
		return detection
	}

	if s.state.Mode != ModeEnhanced || s.extractor == nil {
		return nil
	}

	extraction, err := s.extractor.Extract(ctx, frame)
	if err != nil {
		slog.Warn("Fallback extraction failed", "error", err)
		return nil
	}
	if extraction.ToyNumber == nil || *extraction.ToyNumber == "" ||
		extraction.Confidence <= fallbackConfidenceFloor {
		return nil
	}

	return &Detection{
		Code:       *extraction.ToyNumber,
		Source:     SourceFallback,
		Confidence: extraction.Confidence,
		Attrs: &catalog.IdentifyAttrs{
			ReleaseYear:  extraction.ReleaseYear,
			SeriesName:   extraction.SeriesName,
			BodyColor:    extraction.BodyColor,
			SeriesNumber: extraction.SeriesNumber,
		},
	}
}

// handleDetection resolves a detection and runs variant disambiguation
func (s *Session) handleDetection(ctx context.Context, detection *Detection) {
	car, err := s.resolver.Identify(ctx, detection.Code, detection.Attrs)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.handler.NotFound(detection.Code)
			return
		}
		s.handler.Failure(detection.Code, err)
		return
	}

	outcome, variant := Select(car.Variants)
	switch outcome {
	case OutcomeNoVariants:
		s.handler.NoVariants(detection.Code)
	case OutcomeAutoResolved:
		s.addVariant(ctx, detection.Code, car, variant.ID)
	case OutcomeAwaitingChoice:
		chosen, ok := s.handler.ChooseVariant(car)
		if !ok {
			return
		}
		if !containsVariant(car.Variants, chosen) {
			slog.Warn("Chosen variant not among candidates", "variant_id", chosen)
			return
		}
		s.addVariant(ctx, detection.Code, car, chosen)
	}
}

func (s *Session) addVariant(ctx context.Context, code string, car *catalog.Car, variantID uuid.UUID) {
	item, err := s.resolver.AddToCollection(ctx, variantID)
	if err != nil {
		s.handler.Failure(code, err)
		return
	}
	s.handler.VariantAdded(car, item)
}

func containsVariant(variants []catalog.Variant, id uuid.UUID) bool {
	for _, v := range variants {
		if v.ID == id {
			return true
		}
	}
	return false
}

// sleep waits for d or ctx cancellation, reporting whether the full delay
// elapsed
func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
