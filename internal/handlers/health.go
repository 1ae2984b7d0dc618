package handlers

import (
	"net/http"

	"github.com/nkiryanov/calcboard/internal/handlers/render"
)

func handleHealth() http.Handler {
	type response struct {
		Status string `json:"status"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		render.JSON(w, response{Status: "ok"})
	})
}
