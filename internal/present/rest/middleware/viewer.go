package middleware

import (
	"context"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/meridian-social/meridian/internal/domain"
)

var tracer = otel.Tracer("viewer")

// IdentifyViewer reads the viewer id header and stores it on the request
// context. Read endpoints stay anonymous when the header is absent; the
// view pipelines then skip relationship resolution entirely.
func IdentifyViewer(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, span := tracer.Start(c.Request().Context(), "Viewer.IdentifyViewer")
		defer span.End()

		viewer := c.Request().Header.Get(domain.ViewerHeader)
		if viewer != "" {
			ctx = context.WithValue(ctx, domain.ViewerCtxKey, viewer)
			span.SetAttributes(attribute.String("Viewer", viewer))
		}

		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// ViewerFromContext returns the request's viewer did, or "" for anonymous.
func ViewerFromContext(ctx context.Context) string {
	viewer, _ := ctx.Value(domain.ViewerCtxKey).(string)
	return viewer
}
