package nutrition

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/antonholmquist/jason"

	"github.com/mealsnap/mealsnap-go/internal/meal"
)

// Nutrient names matched case-insensitively against nutrition.nutrients[].name.
const (
	nutrientCalories      = "calories"
	nutrientCarbohydrates = "carbohydrates"
	nutrientFat           = "fat"
	nutrientProtein       = "protein"
)

// parseNutrition reads the first ingredient of a parseIngredients response.
func parseNutrition(body []byte) (*meal.NutritionFacts, error) {
	root, err := jason.NewValueFromBytes(body)
	if err != nil {
		return nil, err
	}
	ingredients, err := root.Array()
	if err != nil {
		return nil, fmt.Errorf("expected an ingredient array: %w", err)
	}
	if len(ingredients) == 0 {
		return nil, fmt.Errorf("ingredient array is empty")
	}

	first, err := ingredients[0].Object()
	if err != nil {
		return nil, fmt.Errorf("ingredient is not an object: %w", err)
	}
	nutrients, err := first.GetObjectArray("nutrition", "nutrients")
	if err != nil {
		return nil, fmt.Errorf("ingredient has no nutrition.nutrients: %w", err)
	}

	found := make(map[string]string, 4)
	for _, n := range nutrients {
		name, err := n.GetString("name")
		if err != nil {
			return nil, fmt.Errorf("nutrient without name: %w", err)
		}
		amount, err := n.GetFloat64("amount")
		if err != nil {
			return nil, fmt.Errorf("nutrient %q without amount: %w", name, err)
		}
		unit, err := n.GetString("unit")
		if err != nil {
			return nil, fmt.Errorf("nutrient %q without unit: %w", name, err)
		}

		key := strings.ToLower(name)
		if _, dup := found[key]; !dup {
			found[key] = formatAmount(amount, unit)
		}
	}

	facts := meal.NewNutritionFacts(
		found[nutrientCalories],
		found[nutrientCarbohydrates],
		found[nutrientFat],
		found[nutrientProtein],
	)
	return &facts, nil
}

func formatAmount(amount float64, unit string) string {
	s := strconv.FormatFloat(amount, 'f', -1, 64)
	if unit == "" {
		return s
	}
	return s + " " + unit
}
