package option

import (
	"testing"
	"time"

	"github.com/smallbiznis/taskhub/pkg/db"
	"github.com/smallbiznis/taskhub/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	ID        int64 `gorm:"primaryKey"`
	Kind      string
	CreatedAt time.Time
}

func TestOptionsCompose(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&row{}))

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := int64(1); i <= 7; i++ {
		kind := "a"
		if i%2 == 0 {
			kind = "b"
		}
		require.NoError(t, conn.Create(&row{ID: i, Kind: kind, CreatedAt: base.Add(time.Duration(i) * time.Hour)}).Error)
	}

	var got []row
	stmt := ApplyAll(conn.Model(&row{}),
		ApplyOperator(Condition{Field: "kind", Operator: EQ, Value: "a"}),
		WithSortBy(QuerySortBy{Allow: map[string]bool{"created_at": true}, Default: "created_at"}),
		ApplyPagination(pagination.Page{Page: 1, Limit: 2}),
	)
	require.NoError(t, stmt.Find(&got).Error)
	require.Len(t, got, 2)
	assert.Equal(t, int64(7), got[0].ID)
	assert.Equal(t, int64(5), got[1].ID)

	got = nil
	stmt = ApplyAll(conn.Model(&row{}),
		ApplyOperator(Condition{Field: "kind", Operator: EQ, Value: "a"}),
		WithSortBy(QuerySortBy{Allow: map[string]bool{"created_at": true}, Field: "created_at"}),
		ApplyPagination(pagination.Page{Page: 2, Limit: 2}),
	)
	require.NoError(t, stmt.Find(&got).Error)
	require.Len(t, got, 2)
	assert.Equal(t, int64(3), got[0].ID)
	assert.Equal(t, int64(1), got[1].ID)
}

func TestApplyOperatorRejectsUnknownOperator(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&row{}))

	var got []row
	err = ApplyOperator(Condition{Field: "kind", Operator: "LIKE", Value: "a"}).Apply(conn.Model(&row{})).Find(&got).Error
	assert.Error(t, err)
}
