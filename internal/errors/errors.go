// Package errors wraps errors with a component, a category and free-form context so that
// callers can branch on failure kinds and telemetry can group them.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"runtime"
	"strings"
	"sync"
	"time"
)

// ErrorCategory groups errors by the kind of failure.
type ErrorCategory string

// CategorizedError lets an error declare its own category.
type CategorizedError interface {
	error
	ErrorCategory() ErrorCategory
}

const (
	CategoryModelInit       ErrorCategory = "model-initialization"
	CategoryModelLoad       ErrorCategory = "model-loading"
	CategoryLabelLoad       ErrorCategory = "label-loading"
	CategoryModelInference  ErrorCategory = "model-inference"
	CategoryImageProcessing ErrorCategory = "image-processing"
	CategoryRecognition     ErrorCategory = "recognition"
	CategoryValidation      ErrorCategory = "validation"
	CategoryFileIO          ErrorCategory = "file-io"
	CategoryNetwork         ErrorCategory = "network"
	CategoryHTTP            ErrorCategory = "http-request"
	CategoryDatabase        ErrorCategory = "database"
	CategoryConfiguration   ErrorCategory = "configuration"
	CategoryFileParsing     ErrorCategory = "file-parsing"
	CategoryNotFound        ErrorCategory = "not-found"
	CategoryState           ErrorCategory = "state"
	CategoryLimit           ErrorCategory = "limit"
	CategoryTimeout         ErrorCategory = "timeout"
	CategoryCancellation    ErrorCategory = "cancellation"
	CategorySystem          ErrorCategory = "system-resource"
	CategoryGeneric         ErrorCategory = "generic"
)

// Priority values accepted by ErrorBuilder.Priority.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// ComponentUnknown is reported when no component could be attributed to an error.
const ComponentUnknown = "unknown"

// modulePath is skipped while walking the stack for component detection.
const modulePath = "github.com/mealsnap/mealsnap-go/internal/errors"

// EnhancedError carries an error together with classification metadata.
type EnhancedError struct {
	Err       error
	component string
	Category  ErrorCategory
	Priority  string
	Context   map[string]any
	Timestamp time.Time

	mu       sync.RWMutex
	reported bool
	detected bool
}

func (ee *EnhancedError) Error() string {
	return ee.Err.Error()
}

func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

// Is matches another EnhancedError by category, anything else through the wrapped chain.
func (ee *EnhancedError) Is(target error) bool {
	if other, ok := target.(*EnhancedError); ok {
		return ee.Category == other.Category
	}
	return Is(ee.Err, target)
}

// GetComponent returns the owning component, walking the stack on first use.
func (ee *EnhancedError) GetComponent() string {
	ee.mu.RLock()
	if ee.detected || ee.component != "" {
		c := ee.component
		ee.mu.RUnlock()
		return c
	}
	ee.mu.RUnlock()

	ee.mu.Lock()
	defer ee.mu.Unlock()
	if ee.component == "" && !ee.detected {
		ee.component = detectComponent()
		if ee.component == "" {
			ee.component = ComponentUnknown
		}
		ee.detected = true
	}
	return ee.component
}

// GetCategory returns the category as a plain string.
func (ee *EnhancedError) GetCategory() string {
	return string(ee.Category)
}

// GetContext returns a copy of the context map.
func (ee *EnhancedError) GetContext() map[string]any {
	ee.mu.RLock()
	defer ee.mu.RUnlock()
	if ee.Context == nil {
		return nil
	}
	out := make(map[string]any, len(ee.Context))
	maps.Copy(out, ee.Context)
	return out
}

// MarkReported records that telemetry has seen this error.
func (ee *EnhancedError) MarkReported() {
	ee.mu.Lock()
	ee.reported = true
	ee.mu.Unlock()
}

// IsReported reports whether telemetry has already seen this error.
func (ee *EnhancedError) IsReported() bool {
	ee.mu.RLock()
	defer ee.mu.RUnlock()
	return ee.reported
}

// ErrorBuilder assembles an EnhancedError.
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	priority  string
	context   map[string]any
}

// New starts a builder around err.
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf starts a builder around a formatted error. %w is honoured.
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

// Wrap is an alias of New that reads better at call sites adding context to a returned error.
func Wrap(err error) *ErrorBuilder {
	return New(err)
}

func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

// Priority sets an explicit priority. Unknown values fall back to medium.
func (eb *ErrorBuilder) Priority(priority string) *ErrorBuilder {
	switch priority {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		eb.priority = priority
	case "":
	default:
		eb.priority = PriorityMedium
	}
	return eb
}

// Context attaches a key/value pair.
func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	eb.ctx()[key] = value
	return eb
}

// ModelContext records which model produced the error without leaking its full path.
func (eb *ErrorBuilder) ModelContext(modelPath, modelName string) *ErrorBuilder {
	if modelPath != "" {
		eb.ctx()["model_path_type"] = categorizePath(modelPath)
		eb.ctx()["model_extension"] = fileExtension(modelPath)
	}
	if modelName != "" {
		eb.ctx()["model_name"] = modelName
	}
	return eb
}

// FileContext records the kind and size class of a file.
func (eb *ErrorBuilder) FileContext(filePath string, size int64) *ErrorBuilder {
	if filePath != "" {
		eb.ctx()["file_type"] = categorizePath(filePath)
		eb.ctx()["file_extension"] = fileExtension(filePath)
	}
	if size > 0 {
		eb.ctx()["file_size_category"] = categorizeSize(size)
	}
	return eb
}

// NetworkContext records the endpoint scheme and timeout. The URL itself is not stored.
func (eb *ErrorBuilder) NetworkContext(url string, timeout time.Duration) *ErrorBuilder {
	if url != "" {
		eb.ctx()["url_category"] = categorizeURL(url)
	}
	if timeout > 0 {
		eb.ctx()["timeout_seconds"] = timeout.Seconds()
	}
	return eb
}

// Timing records the operation name and its duration.
func (eb *ErrorBuilder) Timing(operation string, d time.Duration) *ErrorBuilder {
	eb.ctx()["operation"] = operation
	eb.ctx()["duration_ms"] = d.Milliseconds()
	return eb
}

func (eb *ErrorBuilder) ctx() map[string]any {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	return eb.context
}

// Build finalises the error. Stack based detection only runs when a telemetry reporter is active.
func (eb *ErrorBuilder) Build() *EnhancedError {
	if !hasActiveReporting.Load() {
		ee := &EnhancedError{
			Err:       eb.err,
			component: eb.component,
			Category:  eb.category,
			Priority:  eb.priority,
			Context:   eb.context,
			Timestamp: time.Now(),
			detected:  true,
		}
		if ee.component == "" {
			ee.component = ComponentUnknown
		}
		if ee.Category == "" {
			ee.Category = inheritedCategory(eb.err)
		}
		return ee
	}

	if eb.component == "" {
		eb.component = detectComponent()
	}
	if eb.category == "" {
		eb.category = detectCategory(eb.err, eb.component)
	}

	ee := &EnhancedError{
		Err:       eb.err,
		component: eb.component,
		Category:  eb.category,
		Priority:  eb.priority,
		Context:   eb.context,
		Timestamp: time.Now(),
		detected:  true,
	}
	reportToTelemetry(ee)
	return ee
}

var (
	componentRegistry = make(map[string]string)
	registryMu        sync.RWMutex
)

// RegisterComponent maps a package path fragment to a component name.
func RegisterComponent(packagePattern, componentName string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	componentRegistry[packagePattern] = componentName
}

func init() {
	RegisterComponent("internal/analysis", "analysis")
	RegisterComponent("internal/classifier", "classifier")
	RegisterComponent("internal/nutrition", "nutrition")
	RegisterComponent("internal/datastore", "datastore")
	RegisterComponent("internal/photo", "photo")
	RegisterComponent("internal/conf", "configuration")
	RegisterComponent("internal/api", "api")
	RegisterComponent("internal/observability", "observability")
}

func detectComponent() string {
	// Typical depths for builder calls made directly from package code.
	for _, depth := range []int{4, 5, 6, 7} {
		if c := componentAt(depth); c != "" && c != ComponentUnknown {
			return c
		}
	}
	return detectComponentFromStack()
}

func componentAt(depth int) string {
	pc, _, _, ok := runtime.Caller(depth)
	if !ok {
		return ""
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil || strings.Contains(fn.Name(), modulePath) {
		return ""
	}
	return lookupComponent(fn.Name())
}

func detectComponentFromStack() string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.Function, modulePath) {
			if c := lookupComponent(frame.Function); c != ComponentUnknown {
				return c
			}
		}
		if !more {
			break
		}
	}
	return ComponentUnknown
}

func lookupComponent(funcName string) string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	for pattern, component := range componentRegistry {
		if strings.Contains(funcName, pattern) {
			return component
		}
	}

	parts := strings.Split(funcName, "/")
	last := parts[len(parts)-1]
	if dot := strings.Index(last, "."); dot > 0 {
		return last[:dot]
	}
	return ComponentUnknown
}

// inheritedCategory reuses the category of a wrapped error when one is available.
func inheritedCategory(err error) ErrorCategory {
	if err == nil {
		return CategoryGeneric
	}
	var catErr CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr.ErrorCategory()
	}
	var enh *EnhancedError
	if stderrors.As(err, &enh) && enh.Category != "" {
		return enh.Category
	}
	return CategoryGeneric
}

func detectCategory(err error, component string) ErrorCategory {
	if cat := inheritedCategory(err); cat != CategoryGeneric {
		return cat
	}
	if err == nil {
		return CategoryGeneric
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "model") && (strings.Contains(msg, "load") || strings.Contains(msg, "read")):
		return CategoryModelLoad
	case strings.Contains(msg, "model") && (strings.Contains(msg, "init") || strings.Contains(msg, "create")):
		return CategoryModelInit
	case strings.Contains(msg, "label"):
		return CategoryLabelLoad
	case strings.Contains(msg, "decode") || strings.Contains(msg, "resize"):
		return CategoryImageProcessing
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return CategoryTimeout
	case strings.Contains(msg, "connection") || strings.Contains(msg, "dial"):
		return CategoryNetwork
	case strings.Contains(msg, "file") || strings.Contains(msg, "open"):
		return CategoryFileIO
	case strings.Contains(msg, "invalid") || strings.Contains(msg, "validation"):
		return CategoryValidation
	}

	switch component {
	case "classifier":
		return CategoryModelInference
	case "datastore":
		return CategoryDatabase
	case "nutrition":
		return CategoryNetwork
	case "api":
		return CategoryHTTP
	case "photo":
		return CategoryImageProcessing
	}
	return CategoryGeneric
}

func categorizePath(path string) string {
	if strings.ContainsAny(path, `/\`) {
		return "absolute-path"
	}
	return "relative-path"
}

func fileExtension(path string) string {
	if dot := strings.LastIndex(path, "."); dot > 0 && dot < len(path)-1 {
		return strings.ToLower(path[dot+1:])
	}
	return "none"
}

func categorizeSize(size int64) string {
	switch {
	case size < 1<<10:
		return "tiny"
	case size < 1<<20:
		return "small"
	case size < 10<<20:
		return "medium"
	case size < 100<<20:
		return "large"
	default:
		return "very-large"
	}
}

func categorizeURL(url string) string {
	url = strings.ToLower(url)
	switch {
	case strings.HasPrefix(url, "https://"):
		return "https-endpoint"
	case strings.HasPrefix(url, "http://"):
		return "http-endpoint"
	default:
		return "other-protocol"
	}
}

// ValidationError builds a validation category error from a message.
func ValidationError(message string) *EnhancedError {
	return New(NewStd(message)).Category(CategoryValidation).Build()
}

// NewStd is stdlib errors.New.
func NewStd(text string) error {
	return stderrors.New(text)
}

// Is is stdlib errors.Is.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As is stdlib errors.As.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Unwrap is stdlib errors.Unwrap.
func Unwrap(err error) error {
	return stderrors.Unwrap(err)
}

// Join is stdlib errors.Join.
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}

// IsCategory reports whether any EnhancedError in err's chain has the given category.
func IsCategory(err error, category ErrorCategory) bool {
	var enh *EnhancedError
	return As(err, &enh) && enh.Category == category
}

// IsNotFound is IsCategory(err, CategoryNotFound).
func IsNotFound(err error) bool {
	return IsCategory(err, CategoryNotFound)
}
