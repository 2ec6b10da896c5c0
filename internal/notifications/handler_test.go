package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentflow/property-portal/property-portal-backend/internal/auth"
	"rentflow/property-portal/property-portal-backend/internal/models"
	"rentflow/property-portal/property-portal-backend/internal/notifications/websocket"
)

func newInboxRouter(f *fixture, u *models.User, connector Connector) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		auth.SetPrincipal(c, &auth.Principal{UserID: u.ID, Username: u.Username, Actor: u.Actor()})
		c.Next()
	})
	h := NewHandler(f.svc, connector, nil)
	h.RegisterRoutes(r.Group("/workflows/api"))
	h.RegisterWebSocket(r, "/workflows/ws")
	return r
}

func call(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestInboxEndpoints(t *testing.T) {
	f := newFixture(t, "Managers")
	ctx := context.Background()
	first, err := f.svc.Notify(ctx, Request{RecipientID: f.tenantU.ID, Title: "Rent due", Message: "Rent is due on the 5th"})
	require.NoError(t, err)
	f.now = f.now.Add(time.Minute)
	_, err = f.svc.Notify(ctx, Request{RecipientID: f.tenantU.ID, Title: "Request updated"})
	require.NoError(t, err)
	_, err = f.svc.Notify(ctx, Request{RecipientID: f.manager.ID, Title: "Not yours"})
	require.NoError(t, err)

	r := newInboxRouter(f, f.tenantU, nil)

	w := call(r, http.MethodGet, "/workflows/api/notifications")
	require.Equal(t, http.StatusOK, w.Code)
	var listed struct {
		Notifications []WorkflowNotification `json:"notifications"`
		Count         int                    `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Equal(t, 2, listed.Count)
	assert.Equal(t, "Request updated", listed.Notifications[0].Title)

	w = call(r, http.MethodPost, "/workflows/api/notifications/"+first.ID.String()+"/read")
	require.Equal(t, http.StatusOK, w.Code)

	w = call(r, http.MethodGet, "/workflows/api/notifications/unread-count")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"unread":1}`, w.Body.String())

	w = call(r, http.MethodGet, "/workflows/api/notifications?unread=true")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Equal(t, 1, listed.Count)
}

func TestMarkReadErrors(t *testing.T) {
	f := newFixture(t, "Managers")
	n, err := f.svc.Notify(context.Background(), Request{RecipientID: f.manager.ID, Title: "Escalated"})
	require.NoError(t, err)
	r := newInboxRouter(f, f.tenantU, nil)

	assert.Equal(t, http.StatusBadRequest, call(r, http.MethodPost, "/workflows/api/notifications/xyz/read").Code)
	assert.Equal(t, http.StatusNotFound, call(r, http.MethodPost, "/workflows/api/notifications/"+n.ID.String()+"/read").Code)
	assert.Equal(t, http.StatusNotFound, call(r, http.MethodPost, "/workflows/api/notifications/"+uuid.NewString()+"/read").Code)
}

func TestDueEscalationsEndpoint(t *testing.T) {
	f := newFixture(t, "Managers")
	_, err := f.svc.ScheduleEscalation(context.Background(), f.request, "sla_breach", 2, PriorityUrgent)
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, call(newInboxRouter(f, f.tenantU, nil), http.MethodGet, "/workflows/api/escalations/due").Code)

	staff := newInboxRouter(f, f.manager, nil)
	w := call(staff, http.MethodGet, "/workflows/api/escalations/due")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":0`)

	f.now = f.now.Add(3 * time.Hour)
	w = call(staff, http.MethodGet, "/workflows/api/escalations/due")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)
}

func TestWebSocketEndpoint(t *testing.T) {
	f := newFixture(t, "Managers")

	w := call(newInboxRouter(f, f.tenantU, nil), http.MethodGet, "/workflows/ws")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	manager := websocket.NewManager(nil, nil)
	defer manager.Close()
	// A plain GET is not an upgrade request; the upgrader answers 400.
	w = call(newInboxRouter(f, f.tenantU, manager), http.MethodGet, "/workflows/ws")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
