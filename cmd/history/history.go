// Package history implements the history command listing saved meals.
package history

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mealsnap/mealsnap-go/internal/app"
	"github.com/mealsnap/mealsnap-go/internal/conf"
	"github.com/mealsnap/mealsnap-go/internal/datastore"
	"github.com/mealsnap/mealsnap-go/internal/errors"
	"github.com/mealsnap/mealsnap-go/internal/meal"
)

const defaultLimit = 20

// Command creates the history command.
func Command(settings *conf.Settings) *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List saved meals, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return errors.Newf("--limit must be at least 1, got %d", limit).
					Component("cli").
					Category(errors.CategoryValidation).
					Build()
			}
			store, err := app.OpenStore(settings)
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck // read-only session

			return list(cmd.Context(), cmd.OutOrStdout(), store, limit, offset)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", defaultLimit, "Maximum number of meals to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of meals to skip")

	return cmd
}

func list(ctx context.Context, w io.Writer, store datastore.Interface, limit, offset int) error {
	rows, err := store.List(ctx, limit, offset)
	if err != nil {
		return err
	}
	total, err := store.Count(ctx)
	if err != nil {
		return err
	}

	records := make([]meal.SavedMealRecord, len(rows))
	for i, row := range rows {
		records[i] = row.Record()
	}
	PrintRecords(w, records, total)
	return nil
}

// PrintRecords writes one line per meal with its title-cased foods joined by ", ".
func PrintRecords(w io.Writer, records []meal.SavedMealRecord, total int64) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No saved meals.")
		return
	}

	title := cases.Title(language.English)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSAVED\tFOODS\tPHOTO")
	for _, r := range records {
		foods := r.Foods()
		for i, f := range foods {
			foods[i] = title.String(f)
		}
		photo := "-"
		if r.HasPhoto() {
			photo = r.PhotoFormat
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			r.ID, r.Timestamp.Local().Format(time.DateTime), strings.Join(foods, ", "), photo)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\n%d of %d meals\n", len(records), total)
}
