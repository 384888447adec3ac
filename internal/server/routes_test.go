package server

import (
	"strings"
	"testing"

	"ripple/internal/apicompat"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Every operation in the published Swagger document must be served.
func TestRoutesMatchSwaggerDocument(t *testing.T) {
	s, _ := newTestServer(t)

	registered := make(map[string]bool)
	for _, r := range s.App().GetRoutes(true) {
		path := r.Path
		if len(path) > 1 {
			path = strings.TrimRight(path, "/")
		}
		registered[r.Method+" "+path] = true
	}

	doc, err := apicompat.Load("../../docs/swagger.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, doc.Operations)

	for _, op := range doc.Operations {
		key := strings.ToUpper(op.Method) + " " + doc.RoutePath(op.Path)
		assert.True(t, registered[key], "missing route for %s", key)
	}
}
