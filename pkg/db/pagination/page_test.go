package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageNormalize(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		p := Page{}.Normalize()
		assert.Equal(t, 1, p.Page)
		assert.Equal(t, 10, p.Limit)
	})

	t.Run("clamps limit", func(t *testing.T) {
		p := Page{Page: 3, Limit: 1000}.Normalize()
		assert.Equal(t, 3, p.Page)
		assert.Equal(t, MaxLimit, p.Limit)
	})

	t.Run("offset", func(t *testing.T) {
		assert.Equal(t, 0, Page{Page: 1, Limit: 10}.Offset())
		assert.Equal(t, 20, Page{Page: 3, Limit: 10}.Offset())
	})
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 0, TotalPages(0, 10))
	assert.Equal(t, 1, TotalPages(10, 10))
	assert.Equal(t, 2, TotalPages(11, 10))
	assert.Equal(t, 0, TotalPages(5, 0))
}

func TestBuildCursorPageInfo(t *testing.T) {
	type row struct{ id string }
	items := []*row{{id: "3"}, {id: "2"}, {id: "1"}}

	info := BuildCursorPageInfo(items, 2, func(r *row) string { return r.id })
	assert.True(t, info.HasMore)
	assert.Equal(t, "2", info.NextPageToken)

	info = BuildCursorPageInfo(items, 5, func(r *row) string { return r.id })
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)
}

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "42", CreatedAt: "2024-01-02T03:04:05Z"})
	assert.NoError(t, err)

	decoded, err := DecodeCursor(token)
	assert.NoError(t, err)
	assert.Equal(t, "42", decoded.ID)
	assert.Equal(t, "2024-01-02T03:04:05Z", decoded.CreatedAt)

	_, err = DecodeCursor("%%%")
	assert.Error(t, err)
}
