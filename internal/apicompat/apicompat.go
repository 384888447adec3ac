// Package apicompat reads the generated Swagger document and reports changes that
// would break existing API clients.
package apicompat

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var supportedMethods = map[string]struct{}{
	"get":     {},
	"put":     {},
	"post":    {},
	"delete":  {},
	"patch":   {},
	"head":    {},
	"options": {},
}

// Operation is one documented method on one path.
type Operation struct {
	Method    string
	Path      string
	Responses map[string]struct{}
}

// Spec is the part of a Swagger document the checks look at.
type Spec struct {
	BasePath   string
	Operations map[string]Operation
}

type document struct {
	BasePath string                          `yaml:"basePath"`
	Paths    map[string]map[string]yaml.Node `yaml:"paths"`
}

type operationDoc struct {
	Responses map[string]yaml.Node `yaml:"responses"`
}

// Load reads and parses a swagger.yaml file.
func Load(path string) (*Spec, error) {
	// #nosec G304: path comes from CLI flags in a dev tool
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Parse decodes a Swagger 2 document. Path-level keys that are not HTTP methods are ignored.
func Parse(raw []byte) (*Spec, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if doc.Paths == nil {
		return nil, errors.New("missing top-level paths field")
	}

	spec := &Spec{BasePath: doc.BasePath, Operations: make(map[string]Operation)}
	for path, item := range doc.Paths {
		for method, node := range item {
			method = strings.ToLower(strings.TrimSpace(method))
			if _, ok := supportedMethods[method]; !ok {
				continue
			}
			var op operationDoc
			if err := node.Decode(&op); err != nil {
				return nil, fmt.Errorf("%s %s: %w", strings.ToUpper(method), path, err)
			}
			responses := make(map[string]struct{}, len(op.Responses))
			for code := range op.Responses {
				if code = strings.ToLower(strings.TrimSpace(code)); code != "" {
					responses[code] = struct{}{}
				}
			}
			o := Operation{Method: method, Path: path, Responses: responses}
			spec.Operations[o.key()] = o
		}
	}
	return spec, nil
}

func (o Operation) key() string {
	return strings.ToUpper(o.Method) + " " + o.Path
}

// Compare lists every path, operation or response code present in base but missing from revision.
func Compare(base, revision *Spec) []string {
	var issues []string
	removedPaths := make(map[string]bool)

	for key, baseOp := range base.Operations {
		revOp, ok := revision.Operations[key]
		if !ok {
			if !revision.hasPath(baseOp.Path) {
				if !removedPaths[baseOp.Path] {
					removedPaths[baseOp.Path] = true
					issues = append(issues, "removed path: "+baseOp.Path)
				}
				continue
			}
			issues = append(issues, "removed operation: "+key)
			continue
		}
		for code := range baseOp.Responses {
			if _, ok := revOp.Responses[code]; !ok {
				issues = append(issues, fmt.Sprintf("removed response code: %s -> %s", key, strings.ToUpper(code)))
			}
		}
	}

	sort.Strings(issues)
	return issues
}

func (s *Spec) hasPath(path string) bool {
	for _, op := range s.Operations {
		if op.Path == path {
			return true
		}
	}
	return false
}

// RoutePath converts a documented path into the Fiber route form under the base path,
// e.g. "/posts/{id}" with base "/api" becomes "/api/posts/:id".
func (s *Spec) RoutePath(path string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(s.BasePath, "/"))
	for _, segment := range strings.Split(strings.Trim(path, "/"), "/") {
		b.WriteByte('/')
		if strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}") {
			b.WriteByte(':')
			b.WriteString(segment[1 : len(segment)-1])
			continue
		}
		b.WriteString(segment)
	}
	return b.String()
}
