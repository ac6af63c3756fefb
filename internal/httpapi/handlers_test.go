package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/frc-plan-sync/internal/hub"
	"github.com/DoyleJ11/frc-plan-sync/internal/types"
)

func newHandler(t *testing.T) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return SetupRoutes(hub.NewStore(hub.NewHub(ctx, nil)), nil)
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGenerateCode(t *testing.T) {
	code, err := GenerateCode()
	require.NoError(t, err)
	assert.Len(t, code, 6)
	assert.Equal(t, strings.ToLower(code), code)
}

func TestRoutes(t *testing.T) {
	h := newHandler(t)

	rec := serve(h, http.MethodPost, "/sessions", `{"code":"FRC1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"duplicate session", http.MethodPost, "/sessions", `{"code":"frc1"}`, http.StatusConflict, types.CodeSessionExists},
		{"missing session", http.MethodGet, "/sessions/nope", "", http.StatusNotFound, types.CodeSessionNotFound},
		{"get session", http.MethodGet, "/sessions/FRC1", "", http.StatusOK, ""},
		{"bad collection", http.MethodGet, "/sessions/frc1/teams", "", http.StatusBadRequest, types.CodeBadCollection},
		{"put doc", http.MethodPut, "/sessions/frc1/capabilities/a", `{"rank":1,"title":"A"}`, http.StatusNoContent, ""},
		{"patch missing doc", http.MethodPatch, "/sessions/frc1/capabilities/b", `{"rank":2}`, http.StatusNotFound, types.CodeDocNotFound},
		{"bad json", http.MethodPut, "/sessions/frc1/capabilities/a", `{`, http.StatusBadRequest, types.CodeBadRequest},
		{"batch", http.MethodPost, "/sessions/frc1/batch", `{"ops":[{"kind":"delete","collection":"capabilities","id":"a"}]}`, http.StatusNoContent, ""},
		{"bad op kind", http.MethodPost, "/sessions/frc1/batch", `{"ops":[{"kind":"upsert","collection":"capabilities","id":"a"}]}`, http.StatusBadRequest, types.CodeBadRequest},
		{"version", http.MethodPost, "/sessions/frc1/version", "", http.StatusOK, ""},
		{"healthz", http.MethodGet, "/healthz", "", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantCode != "" {
				var body types.ErrorBody
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, tt.wantCode, body.Code)
			}
		})
	}
}

func TestListDocsAfterWrites(t *testing.T) {
	h := newHandler(t)
	require.Equal(t, http.StatusCreated, serve(h, http.MethodPost, "/sessions", `{"code":"x1"}`).Code)
	require.Equal(t, http.StatusNoContent, serve(h, http.MethodPut, "/sessions/x1/gamePlans/p2", `{"name":"B","createdAt":"2026-01-02T00:00:00Z"}`).Code)
	require.Equal(t, http.StatusNoContent, serve(h, http.MethodPut, "/sessions/x1/gamePlans/p1", `{"name":"A","createdAt":"2026-01-01T00:00:00Z"}`).Code)

	rec := serve(h, http.MethodGet, "/sessions/x1/gamePlans", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var out types.DocsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Docs, 2)
	assert.Equal(t, "p1", out.Docs[0].ID)
}
