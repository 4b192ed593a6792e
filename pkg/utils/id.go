package utils

import (
	"github.com/google/uuid"
)

// GenerateID returns a new unique identifier of the form "<prefix>_<uuid>".
func GenerateID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}
