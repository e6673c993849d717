package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/SubFox/app/controllers"
)

// Router installs a set of routes on the fiber app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// Deps carries the controllers the routers mount. Controllers are built in
// main with their injected services so no route depends on ambient state.
type Deps struct {
	Webhook *controllers.WebhookController
	Users   *controllers.UserController
	Stats   *controllers.StatsController
}

func InstallRouter(app *fiber.App, deps Deps) {
	setup(app, NewHttpRouter(deps.Webhook), NewApiRouter(deps.Users, deps.Stats))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
