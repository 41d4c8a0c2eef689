package catalog

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/google/uuid"

	"diecastscan/internal/vision"
)

var _ = Describe("Server", func() {
	var (
		db        *mockDB
		extractor *mockVisionExtractor
		server    *Server
		basicAuth BasicAuth
		recorder  *httptest.ResponseRecorder
		carID     uuid.UUID
		variantID uuid.UUID
	)

	BeforeEach(func() {
		db = newMockDB()
		extractor = &mockVisionExtractor{}
		basicAuth = BasicAuth{}
		recorder = httptest.NewRecorder()

		carID = uuid.New()
		variantID = uuid.New()
		db.addCar(&Car{ID: carID, ToyNumber: "HYW54", Name: "Twin Mill", Brand: "Hot Wheels"})
		db.addVariant(&Variant{ID: variantID, CarID: carID, ToyNumber: "HYW54", Desc: "Chrome"})
	})

	JustBeforeEach(func() {
		server = NewServer(NewService(db, extractor), basicAuth)
	})

	Describe("GET /identify/{code}", func() {
		It("should resolve a known code", func() {
			req := httptest.NewRequest("GET", "/identify/HYW54", nil)
			server.ServeHTTP(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusOK))
			var payload struct {
				Car *Car `json:"car"`
			}
			Expect(json.Unmarshal(recorder.Body.Bytes(), &payload)).To(Succeed())
			Expect(payload.Car.ID).To(Equal(carID))
			Expect(payload.Car.Variants).To(HaveLen(1))
		})

		It("should return 404 with a detail message for an unknown code", func() {
			req := httptest.NewRequest("GET", "/identify/zzz99", nil)
			server.ServeHTTP(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusNotFound))
			var payload map[string]string
			Expect(json.Unmarshal(recorder.Body.Bytes(), &payload)).To(Succeed())
			Expect(payload["detail"]).To(Equal("Car with toy_number 'ZZZ99' not found"))
		})

		It("should report the lookup key, not the raw composite code, in the 404 detail", func() {
			req := httptest.NewRequest("GET", "/identify/ZZZ99-N521", nil)
			server.ServeHTTP(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusNotFound))
			var payload map[string]string
			Expect(json.Unmarshal(recorder.Body.Bytes(), &payload)).To(Succeed())
			Expect(payload["detail"]).To(Equal("Car with toy_number 'ZZZ99' not found"))
		})

		It("should set CORS headers", func() {
			req := httptest.NewRequest("GET", "/identify/HYW54", nil)
			server.ServeHTTP(recorder, req)

			Expect(recorder.Header().Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})
	})

	Describe("POST /collection", func() {
		It("should add a variant", func() {
			body, _ := json.Marshal(map[string]string{"variant_id": variantID.String()})
			req := httptest.NewRequest("POST", "/collection", bytes.NewReader(body))
			server.ServeHTTP(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusOK))
			var item CollectionItem
			Expect(json.Unmarshal(recorder.Body.Bytes(), &item)).To(Succeed())
			Expect(item.VariantID).To(Equal(variantID))
			Expect(item.Car).NotTo(BeNil())
		})

		It("should return 404 for an unknown variant", func() {
			body, _ := json.Marshal(map[string]string{"variant_id": uuid.New().String()})
			req := httptest.NewRequest("POST", "/collection", bytes.NewReader(body))
			server.ServeHTTP(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusNotFound))
			var payload map[string]string
			Expect(json.Unmarshal(recorder.Body.Bytes(), &payload)).To(Succeed())
			Expect(payload["detail"]).To(Equal("Variant not found"))
		})

		It("should return 400 for a malformed body", func() {
			req := httptest.NewRequest("POST", "/collection", strings.NewReader("not json"))
			server.ServeHTTP(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GET /collection", func() {
		It("should list collection records", func() {
			db.items = []*CollectionItem{{ID: uuid.New(), VariantID: variantID}}

			req := httptest.NewRequest("GET", "/collection", nil)
			server.ServeHTTP(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusOK))
			var items []*CollectionItem
			Expect(json.Unmarshal(recorder.Body.Bytes(), &items)).To(Succeed())
			Expect(items).To(HaveLen(1))
			Expect(items[0].Variant.Desc).To(Equal("Chrome"))
		})
	})

	Describe("GET /toy-numbers", func() {
		It("should return the filtered code list with a count", func() {
			db.codes = []string{"HYW54", "24/100"}

			req := httptest.NewRequest("GET", "/toy-numbers", nil)
			server.ServeHTTP(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusOK))
			var payload struct {
				ToyNumbers []string `json:"toy_numbers"`
				Count      int     `json:"count"`
			}
			Expect(json.Unmarshal(recorder.Body.Bytes(), &payload)).To(Succeed())
			Expect(payload.ToyNumbers).To(Equal([]string{"HYW54"}))
			Expect(payload.Count).To(Equal(1))
		})
	})

	Describe("POST /ocr/gemini", func() {
		multipartBody := func() (*bytes.Buffer, string) {
			var buf bytes.Buffer
			writer := multipart.NewWriter(&buf)
			part, err := writer.CreateFormFile("file", "package.png")
			Expect(err).NotTo(HaveOccurred())
			_, err = part.Write([]byte("fake image data"))
			Expect(err).NotTo(HaveOccurred())
			Expect(writer.Close()).To(Succeed())
			return &buf, writer.FormDataContentType()
		}

		It("should return the normalized extraction", func() {
			extractor.extraction = &vision.Extraction{ToyNumber: "hyw54", Confidence: 0.9}

			body, contentType := multipartBody()
			req := httptest.NewRequest("POST", "/ocr/gemini", body)
			req.Header.Set("Content-Type", contentType)
			server.ServeHTTP(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusOK))
			var result OCRResult
			Expect(json.Unmarshal(recorder.Body.Bytes(), &result)).To(Succeed())
			Expect(result.ToyNumber).To(HaveValue(Equal("HYW54")))
			Expect(result.Confidence).To(Equal(0.9))
		})

		It("should return 400 when no file is provided", func() {
			var buf bytes.Buffer
			writer := multipart.NewWriter(&buf)
			Expect(writer.Close()).To(Succeed())

			req := httptest.NewRequest("POST", "/ocr/gemini", &buf)
			req.Header.Set("Content-Type", writer.FormDataContentType())
			server.ServeHTTP(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("basic authentication", func() {
		BeforeEach(func() {
			basicAuth = BasicAuth{Username: "collector", Password: "secret"}
		})

		It("should reject requests without credentials", func() {
			req := httptest.NewRequest("GET", "/toy-numbers", nil)
			server.ServeHTTP(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusUnauthorized))
			Expect(recorder.Header().Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
		})

		It("should reject wrong credentials", func() {
			req := httptest.NewRequest("GET", "/toy-numbers", nil)
			req.SetBasicAuth("collector", "wrong")
			server.ServeHTTP(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusUnauthorized))
		})

		It("should accept correct credentials", func() {
			req := httptest.NewRequest("GET", "/toy-numbers", nil)
			req.SetBasicAuth("collector", "secret")
			server.ServeHTTP(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusOK))
		})
	})
})
