// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/require"
)

var (
	openapiOnce sync.Once
	openapiDoc  *openapi3.T
	openapiErr  error
)

func loadOpenAPIDoc(t *testing.T) *openapi3.T {
	t.Helper()
	openapiOnce.Do(func() {
		loader := openapi3.NewLoader()
		doc, err := loader.LoadFromFile("openapi.yaml")
		if err != nil {
			openapiErr = err
			return
		}
		if err := doc.Validate(context.Background()); err != nil {
			openapiErr = err
			return
		}
		openapiDoc = doc
	})
	if openapiErr != nil {
		t.Fatalf("openapi load failed: %v", openapiErr)
	}
	return openapiDoc
}

func TestOpenAPIDocumentIsValid(t *testing.T) {
	doc := loadOpenAPIDoc(t)
	require.NotEmpty(t, doc.Paths.Map())
}

// Every operation carries an operationId; tooling and the parity suite
// depend on them.
func TestOpenAPIOperationIDsPresent(t *testing.T) {
	doc := loadOpenAPIDoc(t)
	seen := map[string]bool{}
	forEachOperation(t, doc, func(method, path string, op *openapi3.Operation, _ []*openapi3.Parameter) {
		require.NotEmpty(t, op.OperationID, "%s %s", method, path)
		require.False(t, seen[op.OperationID], "duplicate operationId %s", op.OperationID)
		seen[op.OperationID] = true
	})
}

// Token-gated operations must document the 401; public ones must opt out
// of the global security requirement.
func TestOpenAPISecurityConsistency(t *testing.T) {
	doc := loadOpenAPIDoc(t)
	forEachOperation(t, doc, func(method, path string, op *openapi3.Operation, _ []*openapi3.Parameter) {
		public := op.Security != nil && len(*op.Security) == 0
		_, documents401 := op.Responses.Map()["401"]
		if public {
			require.False(t, documents401, "public op %s %s documents a 401", method, path)
			return
		}
		require.True(t, documents401, "gated op %s %s must document 401", method, path)
	})
}

// The 403 on the pipeline operation is the eligibility gate; its payload
// must carry the machine-readable reason.
func TestOpenAPIPipelineDocumentsEligibilityReason(t *testing.T) {
	doc := loadOpenAPIDoc(t)
	item := doc.Paths.Find("/api/v1/pipeline/{task}/{owner}/{name}")
	require.NotNil(t, item)
	op := item.GetOperation(http.MethodPost)
	require.NotNil(t, op)

	resp := op.Responses.Map()["403"]
	require.NotNil(t, resp)
	media := resp.Value.Content.Get("application/json")
	require.NotNil(t, media)
	schema := media.Schema.Value
	require.Contains(t, schema.Properties, "reason")
}
