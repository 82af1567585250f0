package metrics

import (
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
)

var (
	once sync.Once
	prom *fiberprometheus.FiberPrometheus
)

// Register attaches the prometheus middleware and scrape endpoint.
// The collectors are process-global and created once; registering them
// twice would panic.
func Register(app *fiber.App, appName, path string) {
	once.Do(func() {
		prom = fiberprometheus.New(appName)
	})

	prom.RegisterAt(app, path)

	app.Use(prom.Middleware)
}
