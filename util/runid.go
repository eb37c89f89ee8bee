package util

import (
	"github.com/google/uuid"
)

// GenerateRunID returns a random identifier for one monitoring run
func GenerateRunID() string {
	return uuid.New().String()
}

// ShortRunID returns the first block of a run id, used as a compact log tag
func ShortRunID(id string) string {
	parsed, err := uuid.Parse(id)
	if err != nil {
		if len(id) > 8 {
			return id[:8]
		}
		return id
	}
	return parsed.String()[:8]
}
