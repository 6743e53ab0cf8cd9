package pagination

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// ErrCursorScope rejects a cursor minted for a different filter set.
var ErrCursorScope = errors.New("cursor does not match the current filters")

// Params holds cursor pagination inputs from controllers or services.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor is the keyset position after the last row of a page, newest first.
// Scope fingerprints the filters the page was read with.
type Cursor struct {
	SortAt time.Time `json:"at"`
	ID     uuid.UUID `json:"id"`
	Scope  string    `json:"scope,omitempty"`
}

// Page is one slice of a keyset-paginated listing.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
}

func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// LimitWithBuffer asks for one extra row so BuildPage knows whether another
// page exists.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// Scope fingerprints listing filters. Equal inputs give equal scopes.
func Scope(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:6])
}

// KeysetDesc restricts an ordered query to rows strictly after cursor in
// (column DESC, id DESC) order and applies that ordering.
func KeysetDesc(column string, cursor *Cursor) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		if cursor != nil {
			q = q.Where(fmt.Sprintf("(%[1]s < ? OR (%[1]s = ? AND id < ?))", column),
				cursor.SortAt, cursor.SortAt, cursor.ID)
		}
		return q.Order(column + " DESC").Order("id DESC")
	}
}

// BuildPage drops the lookahead row and mints the next cursor when one exists.
func BuildPage[T any](rows []T, limit int, scope string, cursorOf func(T) Cursor) Page[T] {
	limit = NormalizeLimit(limit)
	if len(rows) <= limit {
		return Page[T]{Items: rows}
	}
	items := rows[:limit]
	next := cursorOf(items[len(items)-1])
	next.Scope = scope
	return Page[T]{Items: items, NextCursor: EncodeCursor(next)}
}

func EncodeCursor(cursor Cursor) string {
	cursor.SortAt = cursor.SortAt.UTC()
	raw, _ := json.Marshal(cursor)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// ParseCursor decodes value and checks it was issued under scope. An empty
// value means the first page.
func ParseCursor(value, scope string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	var cursor Cursor
	if err := json.Unmarshal(raw, &cursor); err != nil {
		return nil, fmt.Errorf("invalid cursor format: %w", err)
	}
	if cursor.ID == uuid.Nil || cursor.SortAt.IsZero() {
		return nil, errors.New("invalid cursor position")
	}
	if cursor.Scope != scope {
		return nil, ErrCursorScope
	}
	return &cursor, nil
}
