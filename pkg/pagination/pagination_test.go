package pagination

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, DefaultLimit, NormalizeLimit(-3))
	assert.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+50))
	assert.Equal(t, 10, NormalizeLimit(10))
	assert.Equal(t, 11, LimitWithBuffer(10))
}

func TestCursorScopedToFilters(t *testing.T) {
	scope := Scope("allocation-1", "food")
	want := Cursor{SortAt: time.Date(2025, 3, 1, 8, 0, 0, 0, time.FixedZone("WIB", 7*3600)), ID: uuid.New(), Scope: scope}

	got, err := ParseCursor(EncodeCursor(want), scope)
	require.NoError(t, err)
	assert.True(t, want.SortAt.Equal(got.SortAt))
	assert.Equal(t, want.ID, got.ID)

	_, err = ParseCursor(EncodeCursor(want), Scope("allocation-1", "operational"))
	assert.ErrorIs(t, err, ErrCursorScope)
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	empty, err := ParseCursor("  ", "")
	require.NoError(t, err)
	assert.Nil(t, empty)

	_, err = ParseCursor("not-base64!", "")
	assert.Error(t, err)

	_, err = ParseCursor(base64.RawURLEncoding.EncodeToString([]byte(`{"at":"2025-01-01T00:00:00Z"}`)), "")
	assert.EqualError(t, err, "invalid cursor position")
}

func TestScopeIsStable(t *testing.T) {
	assert.Equal(t, Scope("a", "b"), Scope("a", "b"))
	assert.NotEqual(t, Scope("ab", ""), Scope("a", "b"))
	assert.Len(t, Scope(), 12)
}

func TestBuildPage(t *testing.T) {
	type row struct {
		at time.Time
		id uuid.UUID
	}
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []row{{base, uuid.New()}, {base.Add(-time.Hour), uuid.New()}, {base.Add(-2 * time.Hour), uuid.New()}}
	cursorOf := func(r row) Cursor { return Cursor{SortAt: r.at, ID: r.id} }

	page := BuildPage(rows, 2, "s1", cursorOf)
	require.Len(t, page.Items, 2)
	next, err := ParseCursor(page.NextCursor, "s1")
	require.NoError(t, err)
	assert.Equal(t, rows[1].id, next.ID)

	last := BuildPage(rows[:2], 2, "s1", cursorOf)
	assert.Len(t, last.Items, 2)
	assert.Empty(t, last.NextCursor)
}

type entry struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	Recorded time.Time
}

func TestKeysetDescWalksAllRows(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&entry{}))

	base := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		// two rows share each timestamp so the id tiebreak matters
		require.NoError(t, conn.Create(&entry{ID: uuid.New(), Recorded: base.Add(time.Duration(i/2) * time.Hour)}).Error)
	}

	seen := map[uuid.UUID]bool{}
	var cursor *Cursor
	for pages := 0; pages < 5; pages++ {
		var rows []entry
		require.NoError(t, conn.Scopes(KeysetDesc("recorded", cursor)).Limit(LimitWithBuffer(2)).Find(&rows).Error)
		page := BuildPage(rows, 2, "", func(e entry) Cursor { return Cursor{SortAt: e.Recorded, ID: e.ID} })
		for _, e := range page.Items {
			assert.False(t, seen[e.ID], "row returned twice")
			seen[e.ID] = true
		}
		if page.NextCursor == "" {
			break
		}
		cursor, err = ParseCursor(page.NextCursor, "")
		require.NoError(t, err)
	}
	assert.Len(t, seen, 5)
}
