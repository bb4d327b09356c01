// Package analyze implements the analyze command for a single meal photo.
package analyze

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mealsnap/mealsnap-go/internal/analysis"
	"github.com/mealsnap/mealsnap-go/internal/app"
	"github.com/mealsnap/mealsnap-go/internal/conf"
	"github.com/mealsnap/mealsnap-go/internal/errors"
	"github.com/mealsnap/mealsnap-go/internal/meal"
)

// Command creates the analyze command.
func Command(settings *conf.Settings) *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "analyze [image]",
		Short: "Analyze a meal photo",
		Long:  `Identify the foods in a photo, look up nutrition for the top match and optionally save the meal.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), settings, args[0], save)
		},
	}

	cmd.Flags().BoolVarP(&save, "save", "s", false, "Save the analyzed meal to the datastore")

	return cmd
}

func run(ctx context.Context, w io.Writer, settings *conf.Settings, path string, save bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.New(err).
			Component("cli").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}

	a, err := app.New(settings)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck // best effort on exit

	return analyzeAndSave(ctx, w, a.Pipeline, data, save)
}

// pipeline is the subset of *analysis.Pipeline used by the command.
type pipeline interface {
	Capture(image []byte) error
	Analyze(ctx context.Context) (meal.AnalyzedMeal, error)
	Save(ctx context.Context) (meal.SavedMealRecord, error)
}

func analyzeAndSave(ctx context.Context, w io.Writer, p pipeline, data []byte, save bool) error {
	if err := p.Capture(data); err != nil {
		return err
	}

	result, err := p.Analyze(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", analysis.FailureMessage(err), err)
	}
	PrintMeal(w, result)

	if !save {
		return nil
	}
	record, err := p.Save(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", analysis.MessageSaveFailed, err)
	}
	fmt.Fprintf(w, "\nSaved meal %s\n", record.ID)
	return nil
}

// PrintMeal writes the identified foods and nutrition facts.
func PrintMeal(w io.Writer, m meal.AnalyzedMeal) {
	title := cases.Title(language.English)

	foods := make([]string, len(m.Labels))
	for i, l := range m.Labels {
		foods[i] = title.String(l)
	}
	fmt.Fprintf(w, "Identified: %s\n", strings.Join(foods, ", "))

	if m.Nutrition == nil {
		fmt.Fprintln(w, "Nutrition:  not available")
		return
	}
	fmt.Fprintf(w, "Nutrition for 1 %s:\n", m.TopLabel())
	fmt.Fprintf(w, "  Calories:      %s\n", m.Nutrition.Calories)
	fmt.Fprintf(w, "  Carbohydrates: %s\n", m.Nutrition.Carbohydrates)
	fmt.Fprintf(w, "  Fat:           %s\n", m.Nutrition.Fat)
	fmt.Fprintf(w, "  Protein:       %s\n", m.Nutrition.Protein)
}
