// Package docs embeds the OpenAPI description served under /swagger.
package docs

import (
	_ "embed"
	"net/http"
)

//go:embed openapi.json
var OpenAPI []byte

func Handler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(OpenAPI)
}
