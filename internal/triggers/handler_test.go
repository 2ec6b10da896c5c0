package triggers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentflow/property-portal/property-portal-backend/internal/auth"
	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

func newTriggerRouter(env *testEnv, staff bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	p := &auth.Principal{UserID: uuid.New(), Username: "maria", Actor: workflows.Actor{Name: "maria", Staff: staff}}
	r.Use(func(c *gin.Context) {
		auth.SetPrincipal(c, p)
		c.Next()
	})
	NewHandler(env.svc, nil).RegisterRoutes(r.Group("/workflows/api"))
	return r
}

func send(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTriggerRoutesRequireStaff(t *testing.T) {
	env := newEnv(t)
	w := send(newTriggerRouter(env, false), http.MethodGet, "/workflows/api/triggers", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestTriggerCRUD(t *testing.T) {
	env := newEnv(t)
	r := newTriggerRouter(env, true)

	rule := map[string]any{
		"name":               "notify on cancel",
		"instance_type":      "Payment",
		"trigger_type":       "event_based",
		"trigger_events":     []string{"cancel_payment"},
		"action_type":        "notification",
		"notification_title": "Payment cancelled",
		"priority":           5,
		"is_active":          true,
	}
	w := send(r, http.MethodPost, "/workflows/api/triggers", rule)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created WorkflowTrigger
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEqual(t, uuid.Nil, created.ID)
	require.NotNil(t, created.CreatedBy)

	w = send(r, http.MethodGet, "/workflows/api/triggers?instance_type=Payment", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Equal(t, 1, listed.Count)

	rule["priority"] = 9
	w = send(r, http.MethodPut, "/workflows/api/triggers/"+created.ID.String(), rule)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = send(r, http.MethodDelete, "/workflows/api/triggers/"+created.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	stored, err := env.svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.Equal(t, 9, stored.Priority)
	assert.Equal(t, created.CreatedBy, stored.CreatedBy)
}

func TestTriggerHandlerErrors(t *testing.T) {
	env := newEnv(t)
	r := newTriggerRouter(env, true)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"invalid rule", http.MethodPost, "/workflows/api/triggers", map[string]any{"name": "x", "instance_type": "Invoice"}, http.StatusBadRequest},
		{"malformed json", http.MethodPost, "/workflows/api/triggers", "nope", http.StatusBadRequest},
		{"bad id", http.MethodGet, "/workflows/api/triggers/abc", nil, http.StatusBadRequest},
		{"missing", http.MethodGet, "/workflows/api/triggers/" + uuid.NewString(), nil, http.StatusNotFound},
		{"update missing", http.MethodPut, "/workflows/api/triggers/" + uuid.NewString(), map[string]any{"name": "x"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := send(r, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}
