package handlers

import (
	"github.com/andesco/tagladder/pkg/taglib"

	"github.com/gofiber/fiber/v2"
	"gopkg.in/yaml.v3"
)

type snippetsDoc struct {
	Order    []taglib.Service `yaml:"order"`
	Snippets taglib.Payload   `yaml:"snippets"`
}

// Snippets serves the assembled payload as YAML. When expose is false it
// answers 403.
func Snippets(cfg taglib.InjectionConfig, expose bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !expose {
			return c.Status(fiber.StatusForbidden).SendString("Snippets Disabled")
		}

		body, err := yaml.Marshal(snippetsDoc{
			Order:    taglib.Services(),
			Snippets: taglib.Assemble(cfg),
		})
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).SendString(err.Error())
		}

		c.Set(fiber.HeaderContentType, "application/x-yaml")
		return c.Send(body)
	}
}
