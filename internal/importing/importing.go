package importing

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"diecastscan/internal/catalog"
)

// Model is one casting page's worth of import data
type Model struct {
	Name     string
	Versions []Version
}

// Version is one row of a casting's versions table, raw as scraped
type Version struct {
	ToyNumber string
	Year      string
	Series    string
	Color     string
	Collector string // collector number, e.g. "238/250"
	Tampo     string
	Notes     string
}

// Stats summarizes an import run
type Stats struct {
	Cars     int
	Variants int
	Skipped  int
}

// Load writes models into the catalog database. Versions without a valid
// toy number are skipped; models with no usable versions are skipped whole.
func Load(db catalog.DB, brand string, models []Model) (Stats, error) {
	var stats Stats
	for _, model := range models {
		variants := buildVariants(model)
		if len(variants) == 0 {
			stats.Skipped++
			continue
		}

		car := &catalog.Car{
			ID:        uuid.New(),
			ToyNumber: variants[0].ToyNumber,
			Name:      model.Name,
			Brand:     brand,
		}
		if err := db.SaveCar(car); err != nil {
			return stats, fmt.Errorf("saving car %q: %w", model.Name, err)
		}
		stats.Cars++

		for i := range variants {
			variants[i].CarID = car.ID
			if err := db.SaveVariant(&variants[i]); err != nil {
				return stats, fmt.Errorf("saving variant of %q: %w", model.Name, err)
			}
			stats.Variants++
		}
	}
	return stats, nil
}

func buildVariants(model Model) []catalog.Variant {
	variants := make([]catalog.Variant, 0, len(model.Versions))
	for _, v := range model.Versions {
		code := catalog.NormalizeToyNumber(v.ToyNumber)
		if !catalog.ValidToyNumber(code) || strings.Contains(code, "/") {
			continue
		}

		series := catalog.CleanSeriesName(v.Series)
		seriesLower := strings.ToLower(series)
		variant := catalog.Variant{
			ID:                uuid.New(),
			ToyNumber:         code,
			Desc:              buildDesc(v),
			SeriesName:        series,
			BodyColor:         strings.TrimSpace(v.Color),
			ReleaseYear:       catalog.ParseReleaseYear(v.Year),
			IsChase:           strings.Contains(strings.ToLower(v.Notes), "chase"),
			SuperTreasureHunt: strings.Contains(seriesLower, "super treasure hunt"),
		}
		variant.TreasureHunt = variant.SuperTreasureHunt ||
			strings.Contains(seriesLower, "treasure hunt")
		if pos, total, ok := catalog.ParseSeriesNumber(v.Collector); ok {
			variant.SeriesPosition = &pos
			variant.SeriesTotal = &total
		}
		variants = append(variants, variant)
	}
	return variants
}

func buildDesc(v Version) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{v.Color, v.Tampo, v.Notes} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// LoadDumpFile reads a previously downloaded JSON dump of models. The dump
// is an array of objects with model_name and a versions array; unknown
// fields are ignored, which keeps old dumps loadable.
func LoadDumpFile(path string) ([]Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dump file: %w", err)
	}

	parsed := gjson.ParseBytes(data)
	if !parsed.IsArray() {
		return nil, fmt.Errorf("dump file is not a JSON array")
	}

	var models []Model
	parsed.ForEach(func(_, entry gjson.Result) bool {
		name := strings.TrimSpace(entry.Get("model_name").String())
		if name == "" {
			name = strings.TrimSpace(entry.Get("page_title").String())
		}
		if name == "" {
			return true
		}

		model := Model{Name: name}
		entry.Get("versions").ForEach(func(_, row gjson.Result) bool {
			model.Versions = append(model.Versions, Version{
				ToyNumber: row.Get("toy_number").String(),
				Year:      row.Get("year").String(),
				Series:    row.Get("series").String(),
				Color:     row.Get("color").String(),
				Collector: row.Get("col_number").String(),
				Tampo:     row.Get("tampo").String(),
				Notes:     row.Get("notes").String(),
			})
			return true
		})
		models = append(models, model)
		return true
	})

	slog.Info("Dump file loaded", "path", path, "models", len(models))
	return models, nil
}
