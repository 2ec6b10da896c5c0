package reports

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentflow/property-portal/property-portal-backend/internal/audit"
	"rentflow/property-portal/property-portal-backend/internal/auth"
	"rentflow/property-portal/property-portal-backend/internal/reports/export"
	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

type fakeUploader struct {
	name        string
	contentType string
	body        string
	err         error
}

func (f *fakeUploader) Upload(ctx context.Context, name string, body io.Reader, contentType string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	raw, _ := io.ReadAll(body)
	f.name, f.contentType, f.body = name, contentType, string(raw)
	return "s3://exports/audit/" + name, nil
}

type reportEnv struct {
	audits *audit.Service
	svc    *Service
	now    time.Time
}

func newReportEnv(t *testing.T, uploader Uploader) *reportEnv {
	t.Helper()
	env := &reportEnv{now: time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC)}
	env.audits = audit.NewService(audit.NewMemoryRepository(), nil, nil)
	env.svc = NewService(env.audits, uploader, nil)
	env.svc.SetClock(func() time.Time { return env.now })
	return env
}

// logAt writes a transition row stamped at ts.
func (e *reportEnv) logAt(ts time.Time, instanceType string, event workflows.Event, from, to workflows.State) {
	e.audits.SetClock(func() time.Time { return ts })
	e.audits.LogWorkflowTransition(context.Background(), audit.TransitionEntry{
		InstanceType: instanceType,
		InstanceID:   "42",
		Event:        event,
		OldState:     from,
		NewState:     to,
		Actor:        workflows.Actor{Name: "maria", Staff: true},
		Notes:        "checked, ok",
	})
}

func TestExportAuditCSV(t *testing.T) {
	env := newReportEnv(t, nil)
	env.logAt(env.now.Add(-40*24*time.Hour), "Payment", "start_processing", "pending", "processing")
	env.logAt(env.now.Add(-2*time.Hour), "MaintenanceRequest", "start_work", "pending", "in_progress")
	env.logAt(env.now.Add(-1*time.Hour), "Payment", "complete_payment", "processing", "completed")

	out, err := env.svc.ExportAudit(context.Background(), ExportRequest{Format: export.FormatCSV, Days: 30})
	require.NoError(t, err)

	assert.Equal(t, "text/csv", out.ContentType)
	assert.Equal(t, "audit-20240603-093000.csv", out.Filename)
	assert.Equal(t, 2, out.Rows)

	lines := strings.Split(strings.TrimSpace(string(out.Body)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Timestamp,Type,Instance,Event type,Event,From,To,User,IP,Notes", lines[0])
	assert.Equal(t, `2024-06-03T08:30:00Z,Payment,42,transition,complete_payment,processing,completed,maria,,"checked, ok"`, lines[1])
	assert.Contains(t, lines[2], "start_work")
}

func TestExportAuditFiltersByInstanceType(t *testing.T) {
	env := newReportEnv(t, nil)
	env.logAt(env.now.Add(-2*time.Hour), "MaintenanceRequest", "start_work", "pending", "in_progress")
	env.logAt(env.now.Add(-1*time.Hour), "Payment", "complete_payment", "processing", "completed")

	out, err := env.svc.ExportAudit(context.Background(), ExportRequest{Format: export.FormatXLSX, Days: 7, InstanceType: "Payment"})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Rows)
	assert.True(t, strings.HasSuffix(out.Filename, ".xlsx"))
	assert.Equal(t, export.FormatXLSX.ContentType(), out.ContentType)
}

func TestExportAuditRejectsLongWindows(t *testing.T) {
	env := newReportEnv(t, nil)
	_, err := env.svc.ExportAudit(context.Background(), ExportRequest{Days: maxExportDays + 1})
	assert.Error(t, err)
}

func TestUpload(t *testing.T) {
	up := &fakeUploader{}
	env := newReportEnv(t, up)
	env.logAt(env.now.Add(-time.Hour), "Payment", "complete_payment", "processing", "completed")

	out, err := env.svc.ExportAudit(context.Background(), ExportRequest{Format: export.FormatPDF, Days: 1})
	require.NoError(t, err)
	require.NoError(t, env.svc.Upload(context.Background(), out))

	assert.Equal(t, "s3://exports/audit/"+out.Filename, out.Location)
	assert.Equal(t, "application/pdf", up.contentType)
	assert.True(t, strings.HasPrefix(up.body, "%PDF-"))

	up.err = errors.New("bucket gone")
	assert.Error(t, env.svc.Upload(context.Background(), out))

	assert.ErrorIs(t, newReportEnv(t, nil).svc.Upload(context.Background(), out), ErrUploadDisabled)
}

func newReportRouter(env *reportEnv, staff bool) *gin.Engine {
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

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestExportEndpoint(t *testing.T) {
	env := newReportEnv(t, nil)
	env.logAt(env.now.Add(-time.Hour), "Payment", "complete_payment", "processing", "completed")
	r := newReportRouter(env, true)

	w := get(r, "/workflows/api/audit/export?format=csv&days=7")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="audit-20240603-093000.csv"`, w.Header().Get("Content-Disposition"))
	assert.Contains(t, w.Body.String(), "complete_payment")

	assert.Equal(t, http.StatusBadRequest, get(r, "/workflows/api/audit/export?format=docx").Code)
	assert.Equal(t, http.StatusBadRequest, get(r, "/workflows/api/audit/export?days=0").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(r, "/workflows/api/audit/export?upload=true").Code)

	assert.Equal(t, http.StatusForbidden, get(newReportRouter(env, false), "/workflows/api/audit/export").Code)
}

func TestExportEndpointUpload(t *testing.T) {
	up := &fakeUploader{}
	env := newReportEnv(t, up)
	r := newReportRouter(env, true)

	w := get(r, "/workflows/api/audit/export?format=pdf&upload=true")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"location":"s3://exports/audit/audit-20240603-093000.pdf"`)
	assert.Equal(t, "audit-20240603-093000.pdf", up.name)
}
