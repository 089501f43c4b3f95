package catalog

import (
	"context"

	errors "github.com/Laisky/errors/v2"
	"gorm.io/gorm"

	"github.com/papyr-app/papyr-api/library/apperr"
)

// Dao reads catalog entities.
type Dao struct {
	db *gorm.DB
}

// NewDao creates a new catalog dao.
func NewDao(db *gorm.DB) *Dao {
	return &Dao{db: db}
}

// Migrate creates the catalog tables.
func (d *Dao) Migrate(ctx context.Context) error {
	if err := d.db.WithContext(ctx).AutoMigrate(&Profile{}, &Book{}); err != nil {
		return errors.Wrap(err, "auto migrate catalog tables")
	}
	return nil
}

// GetProfile loads one profile by id.
func (d *Dao) GetProfile(ctx context.Context, id string) (*Profile, error) {
	profile := new(Profile)
	err := d.db.WithContext(ctx).Where("id = ?", id).First(profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NewNotFound("profile", id)
		}
		return nil, errors.Wrapf(err, "query profile %q", id)
	}

	return profile, nil
}

// GetBook loads one catalog book by id.
func (d *Dao) GetBook(ctx context.Context, id string) (*Book, error) {
	book := new(Book)
	err := d.db.WithContext(ctx).Where("id = ?", id).First(book).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NewNotFound("book", id)
		}
		return nil, errors.Wrapf(err, "query book %q", id)
	}

	return book, nil
}
