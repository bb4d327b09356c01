package errors

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestFastPathNoTelemetry(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := New(fmt.Errorf("test error")).Build()

	if ee.Error() != "test error" {
		t.Errorf("expected message 'test error', got %q", ee.Error())
	}
	if ee.GetComponent() != ComponentUnknown {
		t.Errorf("expected component %q on fast path, got %q", ComponentUnknown, ee.GetComponent())
	}
	if ee.Category != CategoryGeneric {
		t.Errorf("expected category %q on fast path, got %q", CategoryGeneric, ee.Category)
	}
}

func TestCategoryIsInheritedFromWrappedError(t *testing.T) {
	inner := New(NewStd("no rows")).Category(CategoryNotFound).Build()
	outer := New(fmt.Errorf("loading meal: %w", inner)).Build()

	if outer.Category != CategoryNotFound {
		t.Errorf("expected inherited category %q, got %q", CategoryNotFound, outer.Category)
	}
	if !IsNotFound(outer) {
		t.Error("expected IsNotFound to match wrapped category")
	}
}

func TestIsMatchesSentinelThroughEnhancedError(t *testing.T) {
	sentinel := NewStd("sentinel")
	ee := New(fmt.Errorf("context: %w", sentinel)).Category(CategoryState).Build()

	if !Is(ee, sentinel) {
		t.Error("expected errors.Is to find the sentinel through the EnhancedError")
	}
	if !Is(ee, &EnhancedError{Category: CategoryState}) {
		t.Error("expected category comparison to match")
	}
	if Is(ee, &EnhancedError{Category: CategoryDatabase}) {
		t.Error("expected different category not to match")
	}
}

func TestBuilderContextHelpers(t *testing.T) {
	ee := Newf("request failed").
		Component("nutrition").
		Category(CategoryNetwork).
		NetworkContext("https://api.example.com/recipes?apiKey=secret", 5*time.Second).
		Timing("nutrition_lookup", 1500*time.Millisecond).
		Context("status_code", 503).
		Build()

	ctx := ee.GetContext()
	if ctx["url_category"] != "https-endpoint" {
		t.Errorf("unexpected url_category %v", ctx["url_category"])
	}
	if ctx["timeout_seconds"] != 5.0 {
		t.Errorf("unexpected timeout_seconds %v", ctx["timeout_seconds"])
	}
	if ctx["duration_ms"] != int64(1500) {
		t.Errorf("unexpected duration_ms %v", ctx["duration_ms"])
	}
	if ee.GetComponent() != "nutrition" {
		t.Errorf("unexpected component %q", ee.GetComponent())
	}

	// The returned map is a copy.
	ctx["status_code"] = 200
	if ee.GetContext()["status_code"] != 503 {
		t.Error("GetContext must not expose the internal map")
	}
}

func TestPriorityFallsBackToMedium(t *testing.T) {
	ee := Newf("x").Priority("urgent").Build()
	if ee.Priority != PriorityMedium {
		t.Errorf("expected %q, got %q", PriorityMedium, ee.Priority)
	}
}

type recordingReporter struct {
	reported []*EnhancedError
}

func (r *recordingReporter) ReportError(ee *EnhancedError) {
	r.reported = append(r.reported, ee)
	ee.MarkReported()
}

func (r *recordingReporter) IsEnabled() bool { return true }

func TestReporterReceivesErrorsAndDetectsCategory(t *testing.T) {
	rec := &recordingReporter{}
	SetTelemetryReporter(rec)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	ee := New(fmt.Errorf("failed to decode image")).Component("photo").Build()

	if len(rec.reported) != 1 {
		t.Fatalf("expected 1 reported error, got %d", len(rec.reported))
	}
	if !ee.IsReported() {
		t.Error("expected error to be marked reported")
	}
	if ee.Category != CategoryImageProcessing {
		t.Errorf("expected detected category %q, got %q", CategoryImageProcessing, ee.Category)
	}
}

func TestBasicURLScrub(t *testing.T) {
	msg := "GET https://api.spoonacular.com/recipes/parseIngredients?ingredientList=1+apple&apiKey=secret123 failed"
	scrubbed := basicURLScrub(msg)
	if strings.Contains(scrubbed, "secret123") {
		t.Errorf("api key leaked: %s", scrubbed)
	}
	if !strings.Contains(scrubbed, "https://api.spoonacular.com/recipes/parseIngredients?[REDACTED]") {
		t.Errorf("unexpected scrub result: %s", scrubbed)
	}

	scrubbed = basicURLScrub("config error: api_key=abcdef is invalid")
	if !strings.Contains(scrubbed, "[API_KEY_REDACTED]") {
		t.Errorf("expected key redaction, got %s", scrubbed)
	}
}

func TestErrorTitle(t *testing.T) {
	ee := New(NewStd("boom")).
		Component("classifier").
		Category(CategoryModelLoad).
		Context("operation", "load_model").
		Build()

	if got := errorTitle(ee); got != "Classifier Model Loading Error Load Model" {
		t.Errorf("unexpected title %q", got)
	}
}
