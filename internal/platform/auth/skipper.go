package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths are matched against the registered route path and bypass the
// gate.
var publicPaths = map[string]bool{
	"/health":            true,
	"/health/db":         true,
	"/api/auth/login":    true,
	"/api/auth/register": true,
}

// PublicSkipper returns true for requests whose route is public.
func PublicSkipper(c echo.Context) bool {
	return IsPublicPath(c.Path())
}

// IsPublicPath reports whether path bypasses the gate.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
