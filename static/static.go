// Package static serves files from a Filesystem as complete HTTP responses.
package static

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/freekieb7/pebble/filesystem"
	"github.com/freekieb7/pebble/http"
)

// Handler streams the file named by the request path with its MIME type.
// Missing files are answered with 404.
func Handler(fs filesystem.Filesystem) http.Handler {
	return func(ctx *http.RequestCtx) error {
		path := ctx.Request.Path

		size, err := fs.FileSize(path)
		if err != nil {
			return notFoundOr(ctx, err)
		}

		if err := ctx.Response.WriteHead(http.StatusOK, fs.ContentType(path), size); err != nil {
			return err
		}
		if _, err := fs.CopyFile(path, ctx.Response); err != nil {
			return fmt.Errorf("static: copying %s: %w", path, err)
		}

		return ctx.Response.Flush()
	}
}

// TemplateHandler serves the file after replacing every "{key}" with the
// value returned by vars for that request.
func TemplateHandler(fs filesystem.Filesystem, vars func(ctx *http.RequestCtx) map[string]string) http.Handler {
	return func(ctx *http.RequestCtx) error {
		path := ctx.Request.Path

		template, err := fs.ReadFile(path)
		if err != nil {
			return notFoundOr(ctx, err)
		}

		content := string(template)
		for key, value := range vars(ctx) {
			content = strings.ReplaceAll(content, "{"+key+"}", value)
		}

		return ctx.Response.WithBytes(http.StatusOK, fs.ContentType(path), []byte(content))
	}
}

// TimeVars fills {time} with the current local time.
func TimeVars(now func() time.Time) func(ctx *http.RequestCtx) map[string]string {
	return func(ctx *http.RequestCtx) map[string]string {
		return map[string]string{"time": now().Format(time.RFC3339)}
	}
}

func notFoundOr(ctx *http.RequestCtx, err error) error {
	if errors.Is(err, filesystem.ErrFileNotFound) || errors.Is(err, filesystem.ErrIsDirectory) || errors.Is(err, filesystem.ErrInvalidPath) {
		return ctx.Response.WithBytes(http.StatusNotFound, "", nil)
	}
	return err
}
