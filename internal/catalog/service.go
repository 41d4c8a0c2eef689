package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"diecastscan/internal/vision"
)

// ErrNotFound is returned when a code, car, or variant has no catalog entry
var ErrNotFound = errors.New("not found")

// matchScoreThreshold is the feature-match score above which an ambiguous
// identify result is narrowed to a single variant
const matchScoreThreshold = 0.8

// IDGenerator generates unique IDs for collection records
type IDGenerator interface {
	Generate() uuid.UUID
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() uuid.UUID {
	return uuid.New()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// OCRResult is the response shape of the vision extraction endpoint, with
// fields normalized and validated against the catalog's conventions
type OCRResult struct {
	ToyNumber    *string `json:"toy_number"`
	ReleaseYear  *int    `json:"release_year,omitempty"`
	SeriesName   string  `json:"series_name,omitempty"`
	BodyColor    string  `json:"body_color,omitempty"`
	SeriesNumber string  `json:"series_number,omitempty"`
	Confidence   float64 `json:"confidence"`
}

// Service handles catalog operations
type Service struct {
	db          DB
	extractor   vision.Extractor
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source.
// extractor may be nil when no vision backend is configured.
func NewService(db DB, extractor vision.Extractor) *Service {
	return &Service{
		db:          db,
		extractor:   extractor,
		idGenerator: &defaultIDGenerator{},
		timeSource:  &defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, extractor vision.Extractor, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		extractor:   extractor,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// Identify resolves a recognized code to a car and its candidate variants.
// The code is normalized and, for composite codes like "HYW54-N521", only
// the segment before the dash identifies the entry. When attrs are supplied
// and feature matching scores a variant above the threshold, the response is
// narrowed to that single variant; otherwise all variants carrying the code
// are returned for the caller to disambiguate.
func (s *Service) Identify(code string, attrs *IdentifyAttrs) (*Car, error) {
	normalized := LookupToyNumber(code)

	variants, err := s.db.VariantsByToyNumber(normalized)
	if err != nil {
		return nil, fmt.Errorf("looking up toy number: %w", err)
	}
	if len(variants) == 0 {
		return nil, fmt.Errorf("toy number %q: %w", normalized, ErrNotFound)
	}

	if len(variants) == 1 {
		return s.buildCarResponse(variants[0].CarID, variants)
	}

	if best, score := matchVariantByFeatures(variants, attrs); best != nil && score > matchScoreThreshold {
		return s.buildCarResponse(best.CarID, []*Variant{best})
	}

	// Ambiguous: return every variant carrying the code that belongs to the
	// first variant's car, preserving index order
	carID := variants[0].CarID
	candidates := make([]*Variant, 0, len(variants))
	for _, v := range variants {
		if v.CarID == carID {
			candidates = append(candidates, v)
		}
	}
	return s.buildCarResponse(carID, candidates)
}

func (s *Service) buildCarResponse(carID uuid.UUID, variants []*Variant) (*Car, error) {
	car, err := s.db.GetCar(carID)
	if err != nil {
		return nil, fmt.Errorf("getting car: %w", err)
	}
	car.Variants = make([]Variant, 0, len(variants))
	for _, v := range variants {
		car.Variants = append(car.Variants, *v)
	}
	return car, nil
}

// AddToCollection saves a variant to the collection. Adding a variant that
// is already collected returns the existing record instead of inserting a
// duplicate.
func (s *Service) AddToCollection(variantID uuid.UUID) (*CollectionItem, error) {
	variant, err := s.db.GetVariant(variantID)
	if err != nil {
		return nil, fmt.Errorf("getting variant: %w", err)
	}

	existing, err := s.db.FindCollectionItemByVariant(variantID)
	if err != nil {
		return nil, fmt.Errorf("checking for existing record: %w", err)
	}
	if existing != nil {
		return s.hydrateItem(existing, variant)
	}

	item := &CollectionItem{
		ID:        s.idGenerator.Generate(),
		VariantID: variantID,
		AddedAt:   s.timeSource.Now(),
	}
	if err := s.db.SaveCollectionItem(item); err != nil {
		return nil, fmt.Errorf("saving collection item: %w", err)
	}

	return s.hydrateItem(item, variant)
}

// ListCollection returns all collection records with their variants and
// cars joined in, newest first
func (s *Service) ListCollection() ([]*CollectionItem, error) {
	items, err := s.db.ListCollection()
	if err != nil {
		return nil, fmt.Errorf("listing collection: %w", err)
	}

	result := make([]*CollectionItem, 0, len(items))
	for _, item := range items {
		variant, err := s.db.GetVariant(item.VariantID)
		if err != nil {
			// A record pointing at a variant removed by a re-import is
			// skipped rather than failing the whole listing
			continue
		}
		hydrated, err := s.hydrateItem(item, variant)
		if err != nil {
			return nil, err
		}
		result = append(result, hydrated)
	}
	return result, nil
}

func (s *Service) hydrateItem(item *CollectionItem, variant *Variant) (*CollectionItem, error) {
	hydrated := &CollectionItem{
		ID:        item.ID,
		VariantID: item.VariantID,
		AddedAt:   item.AddedAt,
		Variant:   *variant,
	}
	car, err := s.db.GetCar(variant.CarID)
	if err == nil {
		hydrated.Car = car
	}
	return hydrated, nil
}

// ToyNumbers returns every distinct toy number in the catalog, filtered to
// plausible codes and sorted. Fraction-shaped values like "24/100" are
// series positions that pollute the source data, not codes.
func (s *Service) ToyNumbers() ([]string, error) {
	codes, err := s.db.ToyNumbers()
	if err != nil {
		return nil, fmt.Errorf("listing toy numbers: %w", err)
	}

	valid := make([]string, 0, len(codes))
	for _, code := range codes {
		normalized := NormalizeToyNumber(code)
		if strings.Contains(normalized, "/") || !ValidToyNumber(normalized) {
			continue
		}
		valid = append(valid, normalized)
	}
	sort.Strings(valid)
	return valid, nil
}

// ExtractFromImage runs the vision extractor over a package photo and
// normalizes the result. The toy number is only reported when it survives
// validation against the catalog's code format.
func (s *Service) ExtractFromImage(imageData []byte, contentType string) (*OCRResult, error) {
	if s.extractor == nil {
		return nil, fmt.Errorf("no vision extractor configured")
	}

	extraction, err := s.extractor.Extract(imageData, contentType)
	if err != nil {
		return nil, fmt.Errorf("extracting from image: %w", err)
	}

	result := &OCRResult{
		Confidence:   extraction.Confidence,
		SeriesNumber: strings.TrimSpace(extraction.SeriesNumber),
		BodyColor:    strings.TrimSpace(extraction.BodyColor),
	}

	if code := NormalizeToyNumber(extraction.ToyNumber); ValidToyNumber(code) {
		result.ToyNumber = &code
	}
	result.ReleaseYear = ParseReleaseYear(extraction.ReleaseYear)
	if name := CleanSeriesName(extraction.SeriesName); name != "" {
		result.SeriesName = name
	}

	return result, nil
}
