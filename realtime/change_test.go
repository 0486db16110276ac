package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("lesson_id=eq.12")
	require.NoError(t, err)
	assert.Equal(t, Filter{Column: "lesson_id", Value: "12"}, f)
	assert.Equal(t, "lesson_id=eq.12", f.String())

	f, err = ParseFilter("")
	require.NoError(t, err)
	assert.Equal(t, Filter{}, f)

	for _, bad := range []string{"lesson_id", "lesson_id=gt.3", "=eq.3"} {
		_, err := ParseFilter(bad)
		assert.Error(t, err, bad)
	}
}

func TestSubscriptionMatches(t *testing.T) {
	sub, err := NewSubscription(TableComments, "", "lesson_id=eq.12")
	require.NoError(t, err)
	assert.Equal(t, AnyEvent, sub.Event)

	insert := Change{Table: TableComments, Type: Insert, Record: map[string]interface{}{"id": float64(1), "lesson_id": float64(12)}}
	assert.True(t, sub.Matches(insert))

	other := Change{Table: TableComments, Type: Insert, Record: map[string]interface{}{"id": float64(2), "lesson_id": float64(13)}}
	assert.False(t, sub.Matches(other))

	wrongTable := insert
	wrongTable.Table = TableMessages
	assert.False(t, sub.Matches(wrongTable))
}

func TestFilteredSubscriptionMissesDeletes(t *testing.T) {
	del := Change{Table: TableComments, Type: Delete, OldRecord: map[string]interface{}{"id": float64(1)}}

	filtered, err := NewSubscription(TableComments, "*", "lesson_id=eq.12")
	require.NoError(t, err)
	assert.False(t, filtered.Matches(del))

	tableOnly, err := NewSubscription(TableComments, string(Delete), "")
	require.NoError(t, err)
	assert.True(t, tableOnly.Matches(del))

	inserts, err := NewSubscription(TableComments, string(Insert), "")
	require.NoError(t, err)
	assert.False(t, inserts.Matches(del))
}

func TestNewSubscriptionRejects(t *testing.T) {
	_, err := NewSubscription("", "*", "")
	assert.Error(t, err)
	_, err = NewSubscription(TableComments, "TRUNCATE", "")
	assert.Error(t, err)
}

func TestChangeID(t *testing.T) {
	id, ok := Change{Record: map[string]interface{}{"id": float64(9)}}.ID()
	assert.True(t, ok)
	assert.Equal(t, uint(9), id)

	id, ok = Change{OldRecord: map[string]interface{}{"id": float64(4)}}.ID()
	assert.True(t, ok)
	assert.Equal(t, uint(4), id)

	_, ok = Change{}.ID()
	assert.False(t, ok)
}

func TestRowMap(t *testing.T) {
	row := struct {
		ID       uint   `json:"id"`
		LessonID uint   `json:"lesson_id"`
		Body     string `json:"body"`
	}{ID: 3, LessonID: 12, Body: "hi"}
	m, err := RowMap(row)
	require.NoError(t, err)
	assert.Equal(t, float64(12), m["lesson_id"])
	assert.Equal(t, "hi", m["body"])
}
