package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Car represents a casting that groups variants sharing a toy number
type Car struct {
	ID        uuid.UUID `json:"id"`
	ToyNumber string    `json:"toy_number,omitempty"`
	Name      string    `json:"name"`
	Brand     string    `json:"brand"`
	Variants  []Variant `json:"variants"`
}

// Variant represents one concrete release of a car, distinguished by
// descriptive attributes and rarity flags
type Variant struct {
	ID                uuid.UUID `json:"id"`
	CarID             uuid.UUID `json:"car_id"`
	ToyNumber         string    `json:"toy_number"`
	Desc              string    `json:"desc"`
	IsChase           bool      `json:"is_chase"`
	TreasureHunt      bool      `json:"treasure_hunt"`
	SuperTreasureHunt bool      `json:"super_treasure_hunt"`
	ReleaseYear       *int      `json:"release_year,omitempty"`
	SeriesName        string    `json:"series_name,omitempty"`
	SeriesPosition    *int      `json:"series_position,omitempty"`
	SeriesTotal       *int      `json:"series_total,omitempty"`
	BodyColor         string    `json:"body_color,omitempty"`
}

// CollectionItem represents a variant saved to the user's collection
type CollectionItem struct {
	ID        uuid.UUID `json:"id"`
	VariantID uuid.UUID `json:"variant_id"`
	AddedAt   time.Time `json:"added_at"`
	Variant   Variant   `json:"variant"`
	Car       *Car      `json:"car,omitempty"`
}

// IdentifyAttrs carries optional variant features extracted by the vision
// pass, used to narrow ambiguous identify results
type IdentifyAttrs struct {
	ReleaseYear  *int
	SeriesName   string
	BodyColor    string
	SeriesNumber string
}
