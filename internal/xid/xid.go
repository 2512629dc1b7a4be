package xid

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// New returns a prefixed, globally unique identifier such as "cus-3f2a...".
func New(prefix string) string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	if prefix == "" {
		return id.String()
	}
	return fmt.Sprintf("%s-%s", prefix, id.String())
}
