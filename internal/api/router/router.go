package router

import (
	"github.com/wb-go/wbf/ginext"

	"github.com/aliskhannn/bg-remover/internal/api/handlers/order"
)

func Setup(h *order.Handler) *ginext.Engine {
	r := ginext.New()

	r.Use(ginext.Logger())
	r.Use(ginext.Recovery())

	api := r.Group("/api")

	api.POST("/users/:owner/orders", h.Submit) // submitting an order
	api.GET("/users/:owner/orders/:id", h.Get) // getting order state

	return r
}
