package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContext_Getters(t *testing.T) {
	t.Parallel()

	c := &Context{Version: "v1.2.0", BuildDate: "2026-10-01"}
	assert.Equal(t, "v1.2.0", c.GetVersion())
	assert.Equal(t, "2026-10-01", c.GetBuildDate())
	assert.Equal(t, "MealSnap/v1.2.0", c.UserAgent())
	assert.Equal(t, "mealsnap@v1.2.0", c.Release())
}

func TestContext_Unknown(t *testing.T) {
	t.Parallel()

	var nilCtx *Context
	assert.Equal(t, "unknown", nilCtx.GetVersion())
	assert.Equal(t, "unknown", (&Context{}).GetBuildDate())
	assert.Equal(t, "MealSnap/unknown", nilCtx.UserAgent())
}

func TestCurrent_HasVersion(t *testing.T) {
	t.Parallel()

	assert.NotEmpty(t, Current().Version)
}
