package meal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAnalyzedMealTruncatesToThreeLabels(t *testing.T) {
	t.Parallel()

	labels := []string{"pizza", "bread", "cheese", "tomato", "basil"}
	m := NewAnalyzedMeal([]byte{1}, labels, nil)

	assert.Equal(t, []string{"pizza", "bread", "cheese"}, m.Labels)
	assert.Nil(t, m.Nutrition)
	assert.Equal(t, "pizza", m.TopLabel())
	assert.Equal(t, "pizza,bread,cheese", m.IdentifiedFoods())
}

func TestNewAnalyzedMealCopiesInputs(t *testing.T) {
	t.Parallel()

	labels := []string{"apple", "fruit"}
	facts := NewNutritionFacts("52 kcal", "14 g", "", "0.3 g")
	m := NewAnalyzedMeal(nil, labels, &facts)

	labels[0] = "banana"
	facts.Calories = "0 kcal"

	assert.Equal(t, []string{"apple", "fruit"}, m.Labels)
	require.NotNil(t, m.Nutrition)
	assert.Equal(t, "52 kcal", m.Nutrition.Calories)
	assert.Equal(t, NotAvailable, m.Nutrition.Fat)
}

func TestSavedMealRecordFoods(t *testing.T) {
	t.Parallel()

	r := SavedMealRecord{IdentifiedFoods: "apple,fruit"}
	assert.Equal(t, []string{"apple", "fruit"}, r.Foods())
	assert.False(t, r.HasPhoto())

	assert.Nil(t, SavedMealRecord{}.Foods())
}
