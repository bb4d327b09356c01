package api

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mealsnap/mealsnap-go/internal/analysis"
	"github.com/mealsnap/mealsnap-go/internal/errors"
	"github.com/mealsnap/mealsnap-go/internal/meal"
	"github.com/mealsnap/mealsnap-go/internal/photo"
)

// imageFormField is the multipart field carrying the photo on capture.
const imageFormField = "image"

// StateResponse describes the pipeline state.
type StateResponse struct {
	State    string             `json:"state"`
	HasImage bool               `json:"has_image"`
	Meal     *meal.AnalyzedMeal `json:"meal,omitempty"`
	Record   *MealResponse      `json:"record,omitempty"`
	Message  string             `json:"message,omitempty"`
}

// MealResponse is a saved meal without its photo bytes.
type MealResponse struct {
	ID              string    `json:"id"`
	Timestamp       time.Time `json:"timestamp"`
	IdentifiedFoods string    `json:"identified_foods"`
	Foods           []string  `json:"foods"`
	HasPhoto        bool      `json:"has_photo"`
	PhotoFormat     string    `json:"photo_format,omitempty"`
	PhotoURL        string    `json:"photo_url,omitempty"`
}

// MealListResponse is a page of saved meals, newest first.
type MealListResponse struct {
	Meals  []MealResponse `json:"meals"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

func newMealResponse(r meal.SavedMealRecord) MealResponse {
	resp := MealResponse{
		ID:              r.ID,
		Timestamp:       r.Timestamp,
		IdentifiedFoods: r.IdentifiedFoods,
		Foods:           r.Foods(),
		HasPhoto:        r.HasPhoto(),
		PhotoFormat:     r.PhotoFormat,
	}
	if resp.Foods == nil {
		resp.Foods = []string{}
	}
	if resp.HasPhoto {
		resp.PhotoURL = "/api/v1/meals/" + r.ID + "/photo"
	}
	return resp
}

func (s *Server) currentState() StateResponse {
	state := s.pipeline.State()
	resp := StateResponse{
		State:    state.String(),
		HasImage: s.pipeline.HasImage(),
	}
	switch st := state.(type) {
	case analysis.Success:
		m := st.Meal
		resp.Meal = &m
	case analysis.Saved:
		r := newMealResponse(st.Record)
		resp.Record = &r
	case analysis.Failed:
		resp.Message = st.Message
	}
	return resp
}

// getState handles GET /api/v1/state
func (s *Server) getState(c echo.Context) error {
	return c.JSON(http.StatusOK, s.currentState())
}

// capture handles POST /api/v1/capture. The photo is read from the "image"
// multipart field, or from the raw request body for any other content type.
func (s *Server) capture(c echo.Context) error {
	data, err := readImage(c)
	if err != nil {
		return s.HandleError(c, err, "Could not read the uploaded photo", http.StatusBadRequest)
	}
	if len(data) == 0 {
		return s.HandleError(c, nil, "No photo was uploaded", http.StatusBadRequest)
	}
	if _, _, err := photo.Decode(data); err != nil {
		return s.HandleError(c, err, "The uploaded file is not a supported image", http.StatusUnsupportedMediaType)
	}

	if err := s.pipeline.Capture(data); err != nil {
		return s.handlePipelineError(c, err)
	}
	return c.JSON(http.StatusOK, s.currentState())
}

func readImage(c echo.Context) ([]byte, error) {
	req := c.Request()
	if strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		fh, err := c.FormFile(imageFormField)
		if err != nil {
			return nil, err
		}
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close() //nolint:errcheck // read-only multipart file
		return io.ReadAll(f)
	}
	return io.ReadAll(req.Body)
}

// analyze handles POST /api/v1/analyze
func (s *Server) analyze(c echo.Context) error {
	if _, err := s.pipeline.Analyze(c.Request().Context()); err != nil {
		return s.handlePipelineError(c, err)
	}
	return c.JSON(http.StatusOK, s.currentState())
}

// save handles POST /api/v1/save
func (s *Server) save(c echo.Context) error {
	if _, err := s.pipeline.Save(c.Request().Context()); err != nil {
		return s.handlePipelineError(c, err)
	}
	return c.JSON(http.StatusCreated, s.currentState())
}

// dismiss handles POST /api/v1/dismiss; the staged photo is kept.
func (s *Server) dismiss(c echo.Context) error {
	if err := s.pipeline.Dismiss(); err != nil {
		return s.handlePipelineError(c, err)
	}
	return c.JSON(http.StatusOK, s.currentState())
}

// reset handles POST /api/v1/reset; the staged photo is dropped.
func (s *Server) reset(c echo.Context) error {
	if err := s.pipeline.Reset(); err != nil {
		return s.handlePipelineError(c, err)
	}
	return c.JSON(http.StatusOK, s.currentState())
}

// listMeals handles GET /api/v1/meals?limit=&offset=
func (s *Server) listMeals(c echo.Context) error {
	limit, err := queryInt(c, "limit", defaultPageSize)
	if err != nil || limit < 1 {
		return s.HandleError(c, err, "limit must be a positive integer", http.StatusBadRequest)
	}
	limit = min(limit, maxPageSize)

	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		return s.HandleError(c, err, "offset must be a non-negative integer", http.StatusBadRequest)
	}

	records, err := s.history.List(c.Request().Context(), limit, offset)
	if err != nil {
		return s.HandleError(c, err, "Failed to load saved meals", http.StatusInternalServerError)
	}

	resp := MealListResponse{
		Meals:  make([]MealResponse, 0, len(records)),
		Limit:  limit,
		Offset: offset,
	}
	for _, r := range records {
		resp.Meals = append(resp.Meals, newMealResponse(r))
	}
	return c.JSON(http.StatusOK, resp)
}

func queryInt(c echo.Context, name string, fallback int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

// getMeal handles GET /api/v1/meals/:id
func (s *Server) getMeal(c echo.Context) error {
	record, err := s.history.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.handleHistoryError(c, err)
	}
	return c.JSON(http.StatusOK, newMealResponse(record))
}

// getMealPhoto handles GET /api/v1/meals/:id/photo
func (s *Server) getMealPhoto(c echo.Context) error {
	record, err := s.history.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.handleHistoryError(c, err)
	}
	if !record.HasPhoto() {
		return s.HandleError(c, nil, "This meal was saved without a photo", http.StatusNotFound)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=86400")
	return c.Blob(http.StatusOK, photo.ContentType(record.PhotoFormat), record.Photo)
}

func (s *Server) handleHistoryError(c echo.Context, err error) error {
	if errors.IsNotFound(err) {
		return s.HandleError(c, err, "Meal not found", http.StatusNotFound)
	}
	return s.HandleError(c, err, "Failed to load meal", http.StatusInternalServerError)
}

// handlePipelineError maps pipeline errors onto HTTP statuses. Failures that
// leave the pipeline in the Failed state carry the same user facing message.
func (s *Server) handlePipelineError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, analysis.ErrBusy):
		return s.HandleError(c, err, "Another request is being processed", http.StatusConflict)
	case errors.Is(err, analysis.ErrInvalidTransition):
		return s.HandleError(c, err, "Operation not allowed in state "+s.pipeline.State().String(), http.StatusConflict)
	case errors.Is(err, analysis.ErrNoImage):
		return s.HandleError(c, err, analysis.MessageNoImage, http.StatusBadRequest)
	case errors.Is(err, analysis.ErrRecognitionFailed):
		return s.HandleError(c, err, analysis.MessageRecognitionFailed, http.StatusUnprocessableEntity)
	case errors.Is(err, context.DeadlineExceeded):
		return s.HandleError(c, err, failedMessage(s.pipeline.State()), http.StatusGatewayTimeout)
	default:
		return s.HandleError(c, err, failedMessage(s.pipeline.State()), http.StatusInternalServerError)
	}
}

func failedMessage(state analysis.State) string {
	if f, ok := state.(analysis.Failed); ok {
		return f.Message
	}
	return analysis.MessageGeneric
}
