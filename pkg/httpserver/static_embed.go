package httpserver

import (
	"context"
	"embed"
	"io/fs"
	"net/http"

	"github.com/Nephrolytics-ai/call-auditor/pkg/logging"
	"github.com/gofiber/fiber/v2"
	fiberfs "github.com/gofiber/fiber/v2/middleware/filesystem"
)

// uiFiles is the single-page upload form.
//
//go:embed ui
var uiFiles embed.FS

const uiRoot = "ui"

func embeddedUI() (fs.FS, error) {
	return fs.Sub(uiFiles, uiRoot)
}

func mountEmbeddedUI(fiberApp *fiber.App) {
	dist, err := embeddedUI()
	if err != nil {
		logging.NewLogger(context.Background()).Warnf("ui assets not embedded: %v", err)
		return
	}

	fiberApp.Use("/", fiberfs.New(fiberfs.Config{
		Root:   http.FS(dist),
		Index:  "index.html",
		Browse: false,
	}))
}
