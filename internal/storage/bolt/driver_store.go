package bolt

import (
	"context"
	"fmt"
	"time"

	"github.com/opensass/eldflow/internal/storage"
	"go.etcd.io/bbolt"
)

type driverStore struct {
	db *bbolt.DB
}

// Create inserts a new driver. The email must not be registered yet.
func (s *driverStore) Create(ctx context.Context, driver storage.Driver) error {
	stamp(&driver.CreatedAt, &driver.UpdatedAt)

	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		emails, err := ensureIndexBucket(tx, indexDriverEmail)
		if err != nil {
			return err
		}
		email := normalizeIndexKey(driver.Email)
		if emails.Get([]byte(email)) != nil {
			return storage.ErrConflict
		}
		if err := putValue(tx, bucketDrivers, driver.ID, driver); err != nil {
			return err
		}
		return emails.Put([]byte(email), []byte(driver.ID))
	})
}

// Get retrieves a driver by id.
func (s *driverStore) Get(ctx context.Context, id string) (*storage.Driver, error) {
	return getBucketValue[storage.Driver](ctx, s.db, bucketDrivers, id)
}

// GetByEmail retrieves a driver by email, case-insensitively.
func (s *driverStore) GetByEmail(ctx context.Context, email string) (*storage.Driver, error) {
	var id string
	err := s.db.View(func(tx *bbolt.Tx) error {
		emails := indexBucket(tx, indexDriverEmail)
		if emails == nil {
			return storage.ErrNotFound
		}
		value := emails.Get([]byte(normalizeIndexKey(email)))
		if value == nil {
			return storage.ErrNotFound
		}
		id = string(value)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// List retrieves all drivers.
func (s *driverStore) List(ctx context.Context) ([]storage.Driver, error) {
	var drivers []storage.Driver

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketDrivers))
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var driver storage.Driver
			if err := unmarshal(v, &driver); err != nil {
				return err
			}
			drivers = append(drivers, driver)
			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	return drivers, nil
}

// Update replaces an existing driver, moving the email index if it changed.
func (s *driverStore) Update(ctx context.Context, driver storage.Driver) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		bucket := tx.Bucket([]byte(bucketDrivers))
		if bucket == nil {
			return fmt.Errorf("drivers bucket not found")
		}

		data := bucket.Get([]byte(driver.ID))
		if data == nil {
			return storage.ErrNotFound
		}
		var existing storage.Driver
		if err := unmarshal(data, &existing); err != nil {
			return err
		}

		emails, err := ensureIndexBucket(tx, indexDriverEmail)
		if err != nil {
			return err
		}
		oldEmail := normalizeIndexKey(existing.Email)
		newEmail := normalizeIndexKey(driver.Email)
		if oldEmail != newEmail {
			if owner := emails.Get([]byte(newEmail)); owner != nil && string(owner) != driver.ID {
				return storage.ErrConflict
			}
			if err := emails.Delete([]byte(oldEmail)); err != nil {
				return err
			}
			if err := emails.Put([]byte(newEmail), []byte(driver.ID)); err != nil {
				return err
			}
		}

		driver.CreatedAt = existing.CreatedAt
		driver.UpdatedAt = time.Now().UTC()
		return putValue(tx, bucketDrivers, driver.ID, driver)
	})
}

// UpdateLastLogin updates the last login timestamp for a driver.
func (s *driverStore) UpdateLastLogin(ctx context.Context, id string, loginTime time.Time) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketDrivers))
		if bucket == nil {
			return storage.ErrNotFound
		}

		data := bucket.Get([]byte(id))
		if data == nil {
			return storage.ErrNotFound
		}

		var driver storage.Driver
		if err := unmarshal(data, &driver); err != nil {
			return err
		}

		driver.LastLogin = &loginTime
		driver.UpdatedAt = time.Now().UTC()

		newData, err := marshal(driver)
		if err != nil {
			return err
		}

		return bucket.Put([]byte(id), newData)
	})
}
