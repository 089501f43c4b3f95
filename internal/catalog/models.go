// Package catalog holds the relational catalog entities referenced by the
// ingestion pipeline and the chat engine. The wider social-graph CRUD lives
// behind plain table reads and writes and is not modeled here.
package catalog

import (
	"time"

	"gorm.io/datatypes"
)

// Profile is a reader profile. Uploaded documents and conversation messages
// are owned by exactly one profile.
type Profile struct {
	ID          string `gorm:"primaryKey;size:36"`
	DisplayName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName returns the database table name.
func (Profile) TableName() string {
	return "profiles"
}

// Book is a catalog entry. Uploads may link to one, which feeds the chat
// system instruction and the ingestion title-consistency check.
type Book struct {
	ID            string `gorm:"primaryKey;size:36"`
	Title         string
	Author        string
	Description   string
	PublishedYear int
	Genres        datatypes.JSONSlice[string]
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName returns the database table name.
func (Book) TableName() string {
	return "books"
}
