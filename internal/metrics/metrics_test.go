package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveTransition("Payment", "verify_payment_completed", "success", 3*time.Millisecond)
	m.ObserveTransition("Payment", "verify_payment_completed", "success", time.Millisecond)
	m.ObserveTransition("Payment", "refund_payment", "permission_denied", time.Millisecond)
	m.ObserveTrigger("MaintenanceRequest", "success")
	m.ObserveNotification("in_app", "sent")
	m.ObserveJob("sla_escalation", "success", 3, time.Second)
	m.ObserveJob("sla_escalation", "success", 0, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TransitionsTotal.WithLabelValues("Payment", "verify_payment_completed", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransitionsTotal.WithLabelValues("Payment", "refund_payment", "permission_denied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TriggersTotal.WithLabelValues("MaintenanceRequest", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("in_app", "sent")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.JobRunsTotal.WithLabelValues("sla_escalation", "success")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.JobItemsTotal.WithLabelValues("sla_escalation")))
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New(prometheus.NewRegistry())
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	for _, path := range []string{"/items/1", "/items/2", "/missing"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/items/:id", "204")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404")))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "rentflow_http_requests_total"))
}
