package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the vault's HTTP surface. Metadata and download are
// public: the share link itself is the credential. Upload, listing and
// lifecycle operations require the owner identity from the auth middleware.
func RegisterRoutes(app *fiber.App, files *FileHandler, auth *AuthHandler, requireOwner fiber.Handler) {
	if auth != nil {
		authGroup := app.Group("/auth")
		authGroup.Post("/register", auth.Register)
		authGroup.Post("/login", auth.Login)
	}

	group := app.Group("/files")
	group.Post("/", requireOwner, files.Upload)
	group.Get("/", requireOwner, files.List)
	group.Get("/:id/meta", files.Meta)
	group.Get("/:id", files.Download)
	group.Put("/:id", requireOwner, files.Update)
	group.Delete("/:id", requireOwner, files.Delete)
}
