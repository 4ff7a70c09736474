package cmd

import (
	"testing"

	"github.com/vibast-solutions/ms-go-orders/app/controller"
)

func TestSetupHTTPServerRoutes(t *testing.T) {
	e := setupHTTPServer(controller.NewOrderController(nil, nil, nil, nil), "test-key")

	registered := map[string]bool{}
	for _, route := range e.Routes() {
		registered[route.Method+" "+route.Path] = true
	}

	for _, want := range []string{
		"GET /health",
		"POST /checkout",
		"POST /webhooks/stripe",
		"GET /admin/orders",
		"GET /admin/orders/:id",
		"POST /admin/orders/:id",
	} {
		if !registered[want] {
			t.Errorf("route %s is not registered", want)
		}
	}
}
