package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/teris-io/shortid"
)

const tempIdPrefix = "temp-"

// ConversationRoom derives the shared room id for a two-party conversation
// by sorting the participant ids. Either participant computes the same id,
// so no rendezvous message needs to carry it.
func ConversationRoom(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "_" + b
}

// NewTempId generates a local message id for an optimistic entry. The
// prefix distinguishes it from server-issued ids; it is only ever compared
// against other entries in the same timeline, so the random suffix just has
// to avoid colliding with itself.
func NewTempId() string {
	suffix, err := shortid.Generate()
	if err != nil {
		suffix = fmt.Sprintf("%09d", time.Now().Nanosecond())
	}
	return fmt.Sprintf("%s%d-%s", tempIdPrefix, time.Now().UnixMilli(), suffix)
}

// IsTempId reports whether id was generated locally by NewTempId.
func IsTempId(id string) bool {
	return strings.HasPrefix(id, tempIdPrefix)
}
