package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// OpenAPI serves the API description loaded at startup. With no document
// configured the route answers 404.
func OpenAPI(doc []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(doc) == 0 {
			c.String(http.StatusNotFound, "OpenAPI document not loaded")
			return
		}
		c.Data(http.StatusOK, "application/x-yaml", doc)
	}
}

// SwaggerUI serves a Swagger UI page that loads /swagger/spec.
func SwaggerUI(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(swaggerPage))
}

const swaggerPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Village Banking API</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({url: '/swagger/spec', dom_id: '#swagger-ui'});
  </script>
</body>
</html>`
