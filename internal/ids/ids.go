package ids

import (
	"fmt"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/segmentio/ksuid"
)

// shareAlphabet has no '-' so a share id can be joined with a device id
// by a hyphen and split back unambiguously.
const (
	shareAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	shareLength   = 10
)

// New returns a sortable id for users and sessions.
func New() string {
	return ksuid.New().String()
}

// NewImageID returns the random identifier persisted for a stored image.
func NewImageID() string {
	return uuid.NewString()
}

func NewShareID() (string, error) {
	id, err := gonanoid.Generate(shareAlphabet, shareLength)
	if err != nil {
		return "", fmt.Errorf("generate share id: %w", err)
	}
	return id, nil
}
