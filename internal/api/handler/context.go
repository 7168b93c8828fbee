package handler

import (
	"context"

	"github.com/shiftwake/shiftwake/internal/api/middleware"
)

// GetDeviceID retrieves the authenticated device ID from the context.
// This is a convenience wrapper around middleware.GetDeviceID.
func GetDeviceID(ctx context.Context) string {
	return middleware.GetDeviceID(ctx)
}
