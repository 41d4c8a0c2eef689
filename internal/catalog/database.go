package catalog

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

const (
	carBucketName        = "cars"
	variantBucketName    = "variants"
	toyNumberBucketName  = "toy_numbers"
	collectionBucketName = "collection"
)

// DB defines the interface for catalog database operations
type DB interface {
	// SaveCar saves a car to the database
	SaveCar(car *Car) error

	// GetCar retrieves a car by ID
	GetCar(id uuid.UUID) (*Car, error)

	// SaveVariant saves a variant and maintains the toy number index
	SaveVariant(variant *Variant) error

	// GetVariant retrieves a variant by ID
	GetVariant(id uuid.UUID) (*Variant, error)

	// VariantsByToyNumber returns all variants carrying a normalized toy
	// number, in the order they were indexed
	VariantsByToyNumber(code string) ([]*Variant, error)

	// ToyNumbers returns all distinct indexed toy numbers
	ToyNumbers() ([]string, error)

	// SaveCollectionItem saves a collection record
	SaveCollectionItem(item *CollectionItem) error

	// FindCollectionItemByVariant returns the existing record for a variant,
	// or nil when the variant is not in the collection
	FindCollectionItemByVariant(variantID uuid.UUID) (*CollectionItem, error)

	// ListCollection returns all collection records, newest first
	ListCollection() ([]*CollectionItem, error)

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{carBucketName, variantBucketName, toyNumberBucketName, collectionBucketName} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveCar saves a car to the database. Variants are stored separately, so
// the embedded slice is dropped before marshaling.
func (b *BoltDB) SaveCar(car *Car) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(carBucketName))
		stored := *car
		stored.Variants = nil
		data, err := json.Marshal(&stored)
		if err != nil {
			return fmt.Errorf("marshaling car: %w", err)
		}
		return bucket.Put([]byte(car.ID.String()), data)
	})
}

// GetCar retrieves a car by ID
func (b *BoltDB) GetCar(id uuid.UUID) (*Car, error) {
	var car *Car
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(carBucketName))
		data := bucket.Get([]byte(id.String()))
		if data == nil {
			return fmt.Errorf("car %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &car)
	})
	if err != nil {
		return nil, err
	}
	return car, nil
}

// SaveVariant saves a variant and adds it to the toy number index
func (b *BoltDB) SaveVariant(variant *Variant) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(variantBucketName))
		data, err := json.Marshal(variant)
		if err != nil {
			return fmt.Errorf("marshaling variant: %w", err)
		}
		if err := bucket.Put([]byte(variant.ID.String()), data); err != nil {
			return err
		}

		code := NormalizeToyNumber(variant.ToyNumber)
		if code == "" {
			return nil
		}
		index := tx.Bucket([]byte(toyNumberBucketName))
		ids, err := decodeIDList(index.Get([]byte(code)))
		if err != nil {
			return fmt.Errorf("reading toy number index: %w", err)
		}
		for _, id := range ids {
			if id == variant.ID.String() {
				return nil
			}
		}
		ids = append(ids, variant.ID.String())
		encoded, err := json.Marshal(ids)
		if err != nil {
			return fmt.Errorf("encoding toy number index: %w", err)
		}
		return index.Put([]byte(code), encoded)
	})
}

// GetVariant retrieves a variant by ID
func (b *BoltDB) GetVariant(id uuid.UUID) (*Variant, error) {
	var variant *Variant
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(variantBucketName))
		data := bucket.Get([]byte(id.String()))
		if data == nil {
			return fmt.Errorf("variant %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &variant)
	})
	if err != nil {
		return nil, err
	}
	return variant, nil
}

// VariantsByToyNumber returns all variants carrying a toy number, in index
// (insertion) order
func (b *BoltDB) VariantsByToyNumber(code string) ([]*Variant, error) {
	variants := make([]*Variant, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		index := tx.Bucket([]byte(toyNumberBucketName))
		ids, err := decodeIDList(index.Get([]byte(NormalizeToyNumber(code))))
		if err != nil {
			return fmt.Errorf("reading toy number index: %w", err)
		}
		bucket := tx.Bucket([]byte(variantBucketName))
		for _, id := range ids {
			data := bucket.Get([]byte(id))
			if data == nil {
				continue
			}
			var variant Variant
			if err := json.Unmarshal(data, &variant); err != nil {
				return fmt.Errorf("unmarshaling variant: %w", err)
			}
			variants = append(variants, &variant)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return variants, nil
}

// ToyNumbers returns all distinct indexed toy numbers in key order
func (b *BoltDB) ToyNumbers() ([]string, error) {
	codes := make([]string, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		index := tx.Bucket([]byte(toyNumberBucketName))
		return index.ForEach(func(k, v []byte) error {
			codes = append(codes, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return codes, nil
}

// SaveCollectionItem saves a collection record. Only the reference fields
// are persisted; the variant and car are re-joined on read.
func (b *BoltDB) SaveCollectionItem(item *CollectionItem) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(collectionBucketName))
		stored := CollectionItem{
			ID:        item.ID,
			VariantID: item.VariantID,
			AddedAt:   item.AddedAt,
		}
		data, err := json.Marshal(&stored)
		if err != nil {
			return fmt.Errorf("marshaling collection item: %w", err)
		}
		return bucket.Put([]byte(item.ID.String()), data)
	})
}

// FindCollectionItemByVariant returns the record holding a variant, or nil
func (b *BoltDB) FindCollectionItemByVariant(variantID uuid.UUID) (*CollectionItem, error) {
	var found *CollectionItem
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(collectionBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			if found != nil {
				return nil
			}
			var item CollectionItem
			if err := json.Unmarshal(v, &item); err != nil {
				return fmt.Errorf("unmarshaling collection item: %w", err)
			}
			if item.VariantID == variantID {
				found = &item
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// ListCollection returns all collection records, newest first
func (b *BoltDB) ListCollection() ([]*CollectionItem, error) {
	items := make([]*CollectionItem, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(collectionBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var item CollectionItem
			if err := json.Unmarshal(v, &item); err != nil {
				return fmt.Errorf("unmarshaling collection item: %w", err)
			}
			items = append(items, &item)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].AddedAt.After(items[j].AddedAt)
	})
	return items, nil
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}

func decodeIDList(data []byte) ([]string, error) {
	if data == nil {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}
