package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/freekieb7/pebble/filesystem"
	"github.com/freekieb7/pebble/http"
	"github.com/freekieb7/pebble/static"
	"github.com/freekieb7/pebble/telemetry"
	"github.com/freekieb7/pebble/validation"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const name = "github.com/freekieb7/pebble"

var validPaths = []string{
	"/index.html",
	"/resources.html", "/links.html", "/forms.html", "/classic.html", "/events.html",
	"/spring.svg", "/spring.png",
	"/styles.css",
	"/app.js", "/events.js",
}

var formRules = map[string][]string{
	"title": {"required", "max:255"},
	"value": {"max:1024"},
}

func main() {
	addr := flag.String("addr", "0.0.0.0:9999", "listen address")
	workers := flag.Int("workers", http.DefaultWorkerPoolSize, "number of connection workers")
	queue := flag.Int("queue", http.DefaultQueueSize, "accepted connections waiting for a worker")
	headLimit := flag.Int("head-limit", http.DefaultHeadLimit, "bytes buffered for the request head")
	maxBody := flag.Int64("max-body", http.DefaultMaxBodySize, "largest accepted request body in bytes")
	public := flag.String("public", "./public", "directory served for static paths")
	export := flag.Bool("telemetry", false, "export traces, metrics and logs over OTLP/gRPC")
	flag.Parse()

	opts := []http.Option{
		http.WithWorkers(*workers),
		http.WithQueueSize(*queue),
		http.WithHeadLimit(*headLimit),
		http.WithMaxBodySize(*maxBody),
	}

	if err := run(context.Background(), *addr, *public, *export, opts...); err != nil {
		log.Fatalln(err)
	}
}

func run(ctx context.Context, addr string, public string, export bool, opts ...http.Option) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if export {
		telemetry.SetDefaultEnv(map[string]string{
			"OTEL_SERVICE_NAME":           "pebble",
			"OTEL_EXPORTER_OTLP_ENDPOINT": "http://127.0.0.1:4317",
			"OTEL_EXPORTER_OTLP_PROTOCOL": "grpc",
		})

		shutdown, err := telemetry.Setup(ctx)
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Println(err)
			}
		}()
	}

	logger := otelslog.NewLogger(name)
	if !export {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	routes := newRouter(filesystem.NewLocalFileSystem(public)).Build()
	server := http.NewServer("pebble", routes, append(opts, http.WithLogger(logger))...)

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.ListenAndServe(ctx, addr)
	}()

	select {
	case err := <-serverErrCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}

func newRouter(fs filesystem.Filesystem) *http.Router {
	router := http.NewRouter()
	router.Use(http.RecoverMiddleware(), http.LogMiddleware())

	router.Static(validPaths...)
	router.Default(static.Handler(fs))

	router.GET("/classic.html", static.TemplateHandler(fs, static.TimeVars(time.Now)))
	router.POST("/forms.html", formsHandler)

	return router
}

type partSummary struct {
	Name     string `json:"name"`
	Filename string `json:"filename,omitempty"`
	Size     int    `json:"size"`
	Preview  string `json:"preview"`
}

// formsHandler validates the plain fields of a multipart form and echoes a
// summary of every part.
func formsHandler(ctx *http.RequestCtx) error {
	req := ctx.Request

	fields := make(map[string]string)
	summaries := make([]partSummary, 0, len(req.Parts))
	for _, part := range req.Parts {
		if !part.IsFile() {
			fields[part.Name] = string(part.Value)
		}

		preview := part.Value
		if len(preview) > 100 {
			preview = preview[:100]
		}
		summaries = append(summaries, partSummary{
			Name:     part.Name,
			Filename: part.Filename,
			Size:     len(part.Value),
			Preview:  string(preview),
		})
	}

	violations := validation.ValidateFields(fields, formRules)
	if !violations.IsEmpty() {
		return ctx.Response.WithJson(http.StatusUnprocessableEntity, violations)
	}

	return ctx.Response.WithJson(http.StatusOK, map[string]any{
		"query": req.RawQuery,
		"parts": summaries,
	})
}
