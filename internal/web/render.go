package web

import (
	"embed"
	"html/template"

	"github.com/gofiber/fiber/v2"

	"github.com/portal-auth/authpage/internal/profile"
	"github.com/portal-auth/authpage/internal/screen"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type authPage struct {
	State         screen.State
	Controls      screen.Controls
	GoogleEnabled bool
}

type navigationPage struct {
	Profile profile.Profile
}

func render(c *fiber.Ctx, status int, name string, data any) error {
	c.Status(status)
	c.Type("html", "utf-8")
	return pages.ExecuteTemplate(c, name, data)
}
