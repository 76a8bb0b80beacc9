package room

import (
	"github.com/gautam-divyanshu/2d-metaverse-sub001/models"
)

// Geometry resolves a room identifier to its grid geometry. Implemented by
// the persistence layer; defined here so the registry does not depend on it.
type Geometry interface {
	GetSpace(roomID string) (models.Space, error)
}
