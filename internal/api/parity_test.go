// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/oapi-codegen/oapi-codegen/v2/pkg/codegen"
)

var pathParamRe = regexp.MustCompile(`\{([^}]+)\}`)

// pathParamSamples substitutes concrete values so the request hits the
// router like a real client would.
var pathParamSamples = map[string]string{
	"task":  "text-classification",
	"owner": "acme",
	"name":  "classifier",
}

// Every operation in the document must be mounted; a 404 or 405 from the
// router means the document and the routes drifted apart.
func TestRouterMountsEveryDocumentedOperation(t *testing.T) {
	doc := loadOpenAPIDoc(t)

	// The sample model must exist and the upstream must answer, so a 404
	// can only mean an unmounted route.
	upstream := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	})
	env := pipelineEnv(t, upstream.URL)

	forEachOperation(t, doc, func(method, path string, op *openapi3.Operation, params []*openapi3.Parameter) {
		req := buildRequest(t, method, path)
		req.Header.Set("Authorization", "Bearer "+testToken)
		rr := httptest.NewRecorder()
		env.handler.ServeHTTP(rr, req)

		if rr.Code == http.StatusNotFound || rr.Code == http.StatusMethodNotAllowed {
			t.Fatalf("route not mounted: %s %s -> %d", method, path, rr.Code)
		}
	})
}

// Gated operations must answer 401 without credentials; public ones must
// not.
func TestRouterAuthParity(t *testing.T) {
	doc := loadOpenAPIDoc(t)
	env := newTestEnv(t, nil)

	forEachOperation(t, doc, func(method, path string, op *openapi3.Operation, params []*openapi3.Parameter) {
		public := op.Security != nil && len(*op.Security) == 0

		req := buildRequest(t, method, path)
		rr := httptest.NewRecorder()
		env.handler.ServeHTTP(rr, req)

		if public && rr.Code == http.StatusUnauthorized {
			t.Fatalf("public operation behind auth: %s %s", method, path)
		}
		if !public && rr.Code != http.StatusUnauthorized {
			t.Fatalf("gated operation open without token: %s %s -> %d", method, path, rr.Code)
		}
	})
}

// Operation IDs must survive the generator's name mangling unchanged, or
// generated clients end up with surprising method names.
func TestOperationIDsAreCamelCaseStable(t *testing.T) {
	doc := loadOpenAPIDoc(t)
	forEachOperation(t, doc, func(method, path string, op *openapi3.Operation, _ []*openapi3.Parameter) {
		mangled := codegen.ToCamelCase(op.OperationID)
		lower := strings.ToLower(mangled)
		if lower != strings.ToLower(op.OperationID) {
			t.Fatalf("operationId %q mangles to %q (%s %s)", op.OperationID, mangled, method, path)
		}
	})
}

func forEachOperation(t *testing.T, doc *openapi3.T, fn func(method, path string, op *openapi3.Operation, params []*openapi3.Parameter)) {
	t.Helper()
	for path, pathItem := range doc.Paths.Map() {
		if pathItem == nil {
			continue
		}
		for method, op := range pathItem.Operations() {
			if op == nil {
				continue
			}
			fn(method, path, op, collectParams(pathItem, op))
		}
	}
}

func collectParams(pathItem *openapi3.PathItem, op *openapi3.Operation) []*openapi3.Parameter {
	var params []*openapi3.Parameter
	for _, ref := range pathItem.Parameters {
		if ref.Value != nil {
			params = append(params, ref.Value)
		}
	}
	for _, ref := range op.Parameters {
		if ref.Value != nil {
			params = append(params, ref.Value)
		}
	}
	return params
}

func buildRequest(t *testing.T, method, path string) *http.Request {
	t.Helper()
	resolved := pathParamRe.ReplaceAllStringFunc(path, func(m string) string {
		name := pathParamRe.FindStringSubmatch(m)[1]
		if v, ok := pathParamSamples[name]; ok {
			return v
		}
		t.Fatalf("no sample value for path parameter %q in %s", name, path)
		return ""
	})

	var body *string
	if method == http.MethodPost && strings.Contains(path, "/pipeline/") {
		body = str(`{"inputs":"probe"}`)
	}
	return newRequest(method, resolved, body)
}
