package catalog

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/google/uuid"
)

var _ = Describe("BoltDB", func() {
	var db *BoltDB

	BeforeEach(func() {
		var err error
		db, err = NewBoltDB(filepath.Join(GinkgoT().TempDir(), "catalog.db"))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(db.Close()).To(Succeed())
	})

	Describe("cars", func() {
		It("should round-trip a car without its variants", func() {
			car := &Car{
				ID:        uuid.New(),
				ToyNumber: "HYW54",
				Name:      "Twin Mill",
				Brand:     "Hot Wheels",
				Variants:  []Variant{{ID: uuid.New()}},
			}
			Expect(db.SaveCar(car)).To(Succeed())

			got, err := db.GetCar(car.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Name).To(Equal("Twin Mill"))
			Expect(got.Variants).To(BeEmpty())
		})

		It("should return ErrNotFound for an unknown ID", func() {
			_, err := db.GetCar(uuid.New())
			Expect(err).To(MatchError(ErrNotFound))
		})
	})

	Describe("variants and the toy number index", func() {
		var carID uuid.UUID

		BeforeEach(func() {
			carID = uuid.New()
		})

		It("should round-trip a variant", func() {
			variant := &Variant{ID: uuid.New(), CarID: carID, ToyNumber: "HYW54", Desc: "Chrome"}
			Expect(db.SaveVariant(variant)).To(Succeed())

			got, err := db.GetVariant(variant.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Desc).To(Equal("Chrome"))
		})

		It("should return ErrNotFound for an unknown ID", func() {
			_, err := db.GetVariant(uuid.New())
			Expect(err).To(MatchError(ErrNotFound))
		})

		It("should find variants by normalized toy number in insertion order", func() {
			first := &Variant{ID: uuid.New(), CarID: carID, ToyNumber: "hyw 54", Desc: "Chrome"}
			second := &Variant{ID: uuid.New(), CarID: carID, ToyNumber: "HYW54", Desc: "Red"}
			Expect(db.SaveVariant(first)).To(Succeed())
			Expect(db.SaveVariant(second)).To(Succeed())

			variants, err := db.VariantsByToyNumber("HYW54")
			Expect(err).NotTo(HaveOccurred())
			Expect(variants).To(HaveLen(2))
			Expect(variants[0].Desc).To(Equal("Chrome"))
			Expect(variants[1].Desc).To(Equal("Red"))
		})

		It("should not index the same variant twice on re-save", func() {
			variant := &Variant{ID: uuid.New(), CarID: carID, ToyNumber: "HYW54"}
			Expect(db.SaveVariant(variant)).To(Succeed())
			Expect(db.SaveVariant(variant)).To(Succeed())

			variants, err := db.VariantsByToyNumber("HYW54")
			Expect(err).NotTo(HaveOccurred())
			Expect(variants).To(HaveLen(1))
		})

		It("should return no variants for an unknown toy number", func() {
			variants, err := db.VariantsByToyNumber("ZZZZZ")
			Expect(err).NotTo(HaveOccurred())
			Expect(variants).To(BeEmpty())
		})

		It("should list distinct indexed toy numbers", func() {
			Expect(db.SaveVariant(&Variant{ID: uuid.New(), CarID: carID, ToyNumber: "HYW54"})).To(Succeed())
			Expect(db.SaveVariant(&Variant{ID: uuid.New(), CarID: carID, ToyNumber: "GRM04"})).To(Succeed())
			Expect(db.SaveVariant(&Variant{ID: uuid.New(), CarID: carID, ToyNumber: "HYW54"})).To(Succeed())

			codes, err := db.ToyNumbers()
			Expect(err).NotTo(HaveOccurred())
			Expect(codes).To(Equal([]string{"GRM04", "HYW54"}))
		})
	})

	Describe("collection", func() {
		It("should persist only the reference fields", func() {
			item := &CollectionItem{
				ID:        uuid.New(),
				VariantID: uuid.New(),
				AddedAt:   time.Now().UTC(),
				Variant:   Variant{Desc: "Chrome"},
			}
			Expect(db.SaveCollectionItem(item)).To(Succeed())

			items, err := db.ListCollection()
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(1))
			Expect(items[0].ID).To(Equal(item.ID))
			Expect(items[0].Variant.Desc).To(BeEmpty())
		})

		It("should find a record by variant", func() {
			variantID := uuid.New()
			item := &CollectionItem{ID: uuid.New(), VariantID: variantID, AddedAt: time.Now().UTC()}
			Expect(db.SaveCollectionItem(item)).To(Succeed())

			found, err := db.FindCollectionItemByVariant(variantID)
			Expect(err).NotTo(HaveOccurred())
			Expect(found).NotTo(BeNil())
			Expect(found.ID).To(Equal(item.ID))
		})

		It("should return nil when a variant is not collected", func() {
			found, err := db.FindCollectionItemByVariant(uuid.New())
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeNil())
		})

		It("should list records newest first", func() {
			base := time.Now().UTC()
			older := &CollectionItem{ID: uuid.New(), VariantID: uuid.New(), AddedAt: base.Add(-time.Hour)}
			newer := &CollectionItem{ID: uuid.New(), VariantID: uuid.New(), AddedAt: base}
			Expect(db.SaveCollectionItem(older)).To(Succeed())
			Expect(db.SaveCollectionItem(newer)).To(Succeed())

			items, err := db.ListCollection()
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(2))
			Expect(items[0].ID).To(Equal(newer.ID))
			Expect(items[1].ID).To(Equal(older.ID))
		})
	})
})
