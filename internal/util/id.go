package util

import (
	"encoding/hex"

	"github.com/google/uuid"
)

func NewID(prefix string) string {
	id := uuid.New()
	if prefix == "" {
		return hex.EncodeToString(id[:])
	}
	return prefix + "_" + hex.EncodeToString(id[:])
}
