// README: Identifier and geo value objects shared by all modules.
package types

import (
	"strings"

	"github.com/google/uuid"
)

type ID string

// NewID returns a random 32-char lowercase hex identifier.
func NewID() ID {
	return ID(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

type Point struct {
	Lat float64
	Lng float64
}
