package utils

import (
	"time"

	"github.com/zpp0196/localsend-go/internal/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

var aliasAdj = []string{
	"Adorable", "Beautiful", "Big", "Bright", "Clean", "Clever", "Cool",
	"Cute", "Cunning", "Determined", "Energetic", "Efficient", "Fantastic",
	"Fast", "Fine", "Fresh", "Good", "Gorgeous", "Great", "Handsome", "Hot",
	"Kind", "Lovely", "Mystic", "Neat", "Nice", "Patient", "Pretty",
	"Powerful", "Rich", "Secret", "Smart", "Solid", "Special", "Strategic",
	"Strong", "Tidy", "Wise",
}

var aliasFruit = []string{
	"Apple", "Avocado", "Banana", "Blackberry", "Blueberry", "Broccoli",
	"Carrot", "Cherry", "Coconut", "Grape", "Lemon", "Lettuce", "Mango",
	"Melon", "Mushroom", "Onion", "Orange", "Papaya", "Peach", "Pear",
	"Pineapple", "Potato", "Pumpkin", "Raspberry", "Strawberry", "Tomato",
}

func GenAlias() string {
	adj := utils.RandChoice(aliasAdj)
	fruit := utils.RandChoice(aliasFruit)

	return adj + " " + fruit
}

// NewWebServer builds the fiber app used by the receiver. Request bodies
// stream so uploads are never buffered whole in memory.
func NewWebServer() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		StreamRequestBody:     true,
		ReadTimeout:           0,
		IdleTimeout:           60 * time.Second,
	})
	app.Use(recover.New())

	return app
}
