package apicompat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseDoc = `
basePath: /api
paths:
  /posts:
    get:
      responses:
        "200": {description: OK}
    post:
      responses:
        "201": {description: Created}
        "400": {description: Bad Request}
  /posts/{id}/like:
    parameters:
      - name: id
        in: path
    post:
      responses:
        "201": {description: Created}
        "409": {description: Conflict}
`

func TestParse(t *testing.T) {
	spec, err := Parse([]byte(baseDoc))
	require.NoError(t, err)

	assert.Equal(t, "/api", spec.BasePath)
	assert.Len(t, spec.Operations, 3)
	op, ok := spec.Operations["POST /posts/{id}/like"]
	require.True(t, ok)
	assert.Contains(t, op.Responses, "409")
}

func TestParse_MissingPaths(t *testing.T) {
	_, err := Parse([]byte("swagger: \"2.0\"\n"))
	assert.Error(t, err)
}

func TestCompare(t *testing.T) {
	base, err := Parse([]byte(baseDoc))
	require.NoError(t, err)

	t.Run("identical", func(t *testing.T) {
		assert.Empty(t, Compare(base, base))
	})

	t.Run("breaking changes", func(t *testing.T) {
		revision, err := Parse([]byte(`
paths:
  /posts:
    get:
      responses:
        "200": {description: OK}
    post:
      responses:
        "201": {description: Created}
`))
		require.NoError(t, err)

		assert.Equal(t, []string{
			"removed path: /posts/{id}/like",
			"removed response code: POST /posts -> 400",
		}, Compare(base, revision))
	})

	t.Run("additions are compatible", func(t *testing.T) {
		revision, err := Parse([]byte(baseDoc + `
  /notifications:
    get:
      responses:
        "200": {description: OK}
`))
		require.NoError(t, err)
		assert.Empty(t, Compare(base, revision))
	})
}

func TestRoutePath(t *testing.T) {
	spec := &Spec{BasePath: "/api"}
	assert.Equal(t, "/api/posts/:id/like", spec.RoutePath("/posts/{id}/like"))
	assert.Equal(t, "/api/notifications", spec.RoutePath("/notifications"))
}
