package feeds

import (
	"strconv"
)

const (
	DefaultPageLimit = 30
	MaxPageLimit     = 100
)

// ParsePageLimit clamps a numeric limit to [1,100]. Absent or non-numeric
// input yields the default.
func ParsePageLimit(value string) int {
	limit, err := strconv.Atoi(value)
	if err != nil {
		return DefaultPageLimit
	}
	return min(max(limit, 1), MaxPageLimit)
}

// safeParseCursor parses the cursor string and returns the offset.
// If the cursor is invalid or negative, it returns 0.
func safeParseCursor(cursor string) int {
	offset, err := strconv.Atoi(cursor)
	if err != nil || offset < 0 {
		return 0
	}
	return offset
}

// Paginate returns the items in [offset, offset+limit) where offset is decoded
// from cursor. The next cursor is nil once the end of items is reached.
func Paginate[T any](items []T, limit int, cursor string) ([]T, *string) {
	offset := min(safeParseCursor(cursor), len(items))
	end := min(offset+max(limit, 0), len(items))
	page := items[offset:end]

	var nextCursor *string
	if next := offset + len(page); next < len(items) {
		parsed := strconv.Itoa(next)
		nextCursor = &parsed
	}

	return page, nextCursor
}
