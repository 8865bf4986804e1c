package models

import (
	"time"

	"github.com/google/uuid"
)

// Settings catalog entities. Stories reference these by id; names are never
// denormalized into job payloads to avoid stale data.

// Theme is a story theme from the settings catalog.
type Theme struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Language is a target language from the settings catalog. Code is an
// uppercase ISO-style code used by the translation router.
type Language struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Tone is a narrative tone from the settings catalog.
type Tone struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
