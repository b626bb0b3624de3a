package xid

import (
	"strings"

	"github.com/oklog/ulid/v2"
)

// New returns a lexically time-ordered id such as "shift_01j9...".
func New(prefix string) string {
	id := strings.ToLower(ulid.Make().String())
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
