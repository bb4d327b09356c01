package history

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealsnap/mealsnap-go/internal/app"
	"github.com/mealsnap/mealsnap-go/internal/conf"
	"github.com/mealsnap/mealsnap-go/internal/datastore"
	"github.com/mealsnap/mealsnap-go/internal/meal"
)

func TestPrintRecords(t *testing.T) {
	t.Parallel()

	records := []meal.SavedMealRecord{
		{ID: "b", Timestamp: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC), IdentifiedFoods: "apple pie,fruit", Photo: []byte{1}, PhotoFormat: "jpeg"},
		{ID: "a", Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), IdentifiedFoods: "sushi"},
	}

	var buf bytes.Buffer
	PrintRecords(&buf, records, 5)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")

	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], "FOODS")
	assert.Contains(t, lines[1], "Apple Pie, Fruit")
	assert.Contains(t, lines[1], "jpeg")
	assert.Contains(t, lines[2], "Sushi")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(lines[2]), "-"))
	assert.Equal(t, "2 of 5 meals", lines[4])
}

func TestPrintRecords_Empty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	PrintRecords(&buf, nil, 0)
	assert.Equal(t, "No saved meals.\n", buf.String())
}

func TestList(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	settings.Datastore.Type = conf.DatastoreSQLite
	settings.Datastore.SQLite.Path = filepath.Join(t.TempDir(), "meals.db")
	store, err := app.OpenStore(settings)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })

	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	for i, foods := range []string{"oatmeal", "salad,bread", "ramen"} {
		require.NoError(t, store.Save(context.Background(), &datastore.Meal{
			ID:              string(rune('a' + i)),
			Timestamp:       base.Add(time.Duration(i) * time.Hour),
			IdentifiedFoods: foods,
		}))
	}

	var buf bytes.Buffer
	require.NoError(t, list(context.Background(), &buf, store, 2, 0))
	out := buf.String()
	assert.Contains(t, out, "Ramen")
	assert.Contains(t, out, "Salad, Bread")
	assert.NotContains(t, out, "Oatmeal")
	assert.Contains(t, out, "2 of 3 meals")
}
