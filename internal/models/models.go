// package models defines the data model for the grocery list client
package models

import (
	"time"
)

// Model defines the base interface for all persistent models.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error                 // Create inserts a new model into the database
	Get(id string) (T, error)             // Get retrieves a model by its ID
	Delete(id string) error               // Delete removes a model from the database by its ID
	List(listKey string) ([]T, error)     // List retrieves the models recorded for a list, newest first
	Latest(listKey string) (T, error)     // Latest retrieves the newest model recorded for a list
	Prune(listKey string, keep int) error // Prune keeps only the newest keep models for a list
}

// key resolves the canonical identity of an entity carrying both "_id" and "id".
func key(mongoID, id string) string {
	if mongoID != "" {
		return mongoID
	}
	return id
}
