package catalog

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
)

// maxUploadSize bounds OCR uploads; high-resolution phone photos run large
const maxUploadSize = int64(50 << 20) // 50MB

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		corsError(w, "Not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Diecast Collector API"})
}

// handleIdentify resolves a toy number to a car and its candidate variants.
// Optional query params carry features from the vision pass used to narrow
// an ambiguous result.
func (s *Server) handleIdentify(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	var attrs *IdentifyAttrs
	q := r.URL.Query()
	if q.Get("year") != "" || q.Get("series") != "" || q.Get("color") != "" || q.Get("series_number") != "" {
		attrs = &IdentifyAttrs{
			SeriesName:   q.Get("series"),
			BodyColor:    q.Get("color"),
			SeriesNumber: q.Get("series_number"),
		}
		if year, err := strconv.Atoi(q.Get("year")); err == nil {
			attrs.ReleaseYear = &year
		}
	}

	car, err := s.service.Identify(code, attrs)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"detail": "Car with toy_number '" + LookupToyNumber(code) + "' not found",
			})
			return
		}
		slog.Error("Error identifying code", "code", code, "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]*Car{"car": car})
}

// handleAddToCollection saves a variant to the collection
func (s *Server) handleAddToCollection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VariantID uuid.UUID `json:"variant_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	item, err := s.service.AddToCollection(req.VariantID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Variant not found"})
			return
		}
		slog.Error("Error adding to collection", "variant_id", req.VariantID, "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

// handleListCollection returns all collection records, newest first
func (s *Server) handleListCollection(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.ListCollection()
	if err != nil {
		slog.Error("Error listing collection", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, items)
}

// handleToyNumbers returns all known toy numbers; scanner sessions load
// these once at start to build their reference code index
func (s *Server) handleToyNumbers(w http.ResponseWriter, r *http.Request) {
	codes, err := s.service.ToyNumbers()
	if err != nil {
		slog.Error("Error listing toy numbers", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"toy_numbers": codes,
		"count":       len(codes),
	})
}

// handleExtract runs the vision extractor over an uploaded package photo
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		corsError(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		corsError(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading upload", "error", err)
		corsError(w, "Error reading file", http.StatusInternalServerError)
		return
	}

	result, err := s.service.ExtractFromImage(data, header.Header.Get("Content-Type"))
	if err != nil {
		slog.Error("Error extracting from image",
			"filename", header.Filename,
			"file_size", len(data),
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"detail": "Error processing image: " + err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, result)
}
