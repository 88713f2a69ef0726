package spec

import (
	"embed"
	"net/http"
)

//go:embed openapi.yaml
var apiDoc embed.FS

// OpenAPIHandler serves the payment API's embedded OpenAPI document, the one
// the /docs swagger UI loads.
func OpenAPIHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		content, err := apiDoc.ReadFile("openapi.yaml")
		if err != nil {
			http.Error(w, "openapi document unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(content)
	}
}
