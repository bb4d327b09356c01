// Package buildinfo contains build-time metadata separate from user configuration.
package buildinfo

import "runtime/debug"

// Set at build time with -ldflags "-X github.com/mealsnap/mealsnap-go/internal/buildinfo.Version=...".
var (
	Version   = ""
	BuildDate = ""
)

const unknown = "unknown"

// Context contains build-time metadata that is not user-configurable.
type Context struct {
	// Version holds the Git version tag from build
	Version string

	// BuildDate is the time when the binary was built
	BuildDate string
}

// Current returns the metadata of the running binary. Without ldflags the
// module version recorded by the Go toolchain is used, or "dev".
func Current() *Context {
	c := &Context{Version: Version, BuildDate: BuildDate}
	if c.Version == "" {
		c.Version = "dev"
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
			c.Version = info.Main.Version
		}
	}
	return c
}

// GetVersion returns the build version string
func (c *Context) GetVersion() string {
	if c == nil || c.Version == "" {
		return unknown
	}
	return c.Version
}

// GetBuildDate returns the build date string
func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return unknown
	}
	return c.BuildDate
}

// UserAgent is sent with outgoing HTTP requests.
func (c *Context) UserAgent() string {
	return "MealSnap/" + c.GetVersion()
}

// Release names the build for error telemetry.
func (c *Context) Release() string {
	return "mealsnap@" + c.GetVersion()
}
