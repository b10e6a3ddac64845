package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/redrule/reddigen/app/controllers"
	"github.com/redrule/reddigen/internal/pkg/middleware"
)

type ApiRouter struct {
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	app.Get("/health", controllers.HandleHealth)

	api := app.Group("/api", cors.New(), limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
	}))

	// The webhook is authenticated by its HMAC signature, not a user token,
	// and the redirect landing page must work before the dashboard attaches
	// the token.
	payment := api.Group("/payment")
	payment.Post("/webhook", controllers.HandlePaymentWebhook)

	paymentAuthed := payment.Group("", middleware.TokenAuthMiddleware())
	paymentAuthed.Get("/verify", controllers.HandlePaymentVerify)
	paymentAuthed.Post("/verify", controllers.HandlePaymentVerify)
	paymentAuthed.Get("/success", controllers.HandlePaymentVerify)
	paymentAuthed.Post("/manual-verify", controllers.HandlePaymentManualVerify)
	paymentAuthed.Post("/intent", controllers.HandlePaymentIntent)
	paymentAuthed.Get("/status", controllers.HandlePaymentStatus)

	user := api.Group("/user", middleware.TokenAuthMiddleware())
	user.Get("/data", controllers.HandleUserData)
	user.Put("/profile", controllers.HandleUserProfileUpdate)

	posts := api.Group("/posts", middleware.TokenAuthMiddleware())
	posts.Post("/generate", controllers.HandleGeneratePost)
	posts.Post("/optimize", controllers.HandleOptimizePost)

	api.Get("/subreddit/:subreddit/rules", middleware.TokenAuthMiddleware(), controllers.HandleSubredditRules)
}
