package notifications

import (
	"bytes"
	"fmt"
	"strconv"
	"text/template"
	"time"

	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

// EventConfig says who hears about an event and what they are told.
// StaffGroup overrides the service's default staff group.
type EventConfig struct {
	Title        string
	Message      *template.Template
	Priority     Priority
	NotifyTenant bool
	NotifyStaff  bool
	StaffGroup   string
	Type         NotificationType
}

// messageData is the template context for event messages.
type messageData struct {
	Type     string
	ID       string
	Event    string
	OldState string
	NewState string
	Actor    string
	Fields   map[string]string
	Params   map[string]string
}

func msg(text string) *template.Template {
	return template.Must(template.New("").Option("missingkey=zero").Parse(text))
}

var defaultEventConfig = EventConfig{
	Title:    "Workflow update",
	Message:  msg("{{.Type}} {{.ID}} moved from {{.OldState}} to {{.NewState}}."),
	Priority: PriorityNormal,
	Type:     TypeInApp,
}

// DefaultEvents covers every workflow event the portal fires.
var DefaultEvents = map[workflows.Event]EventConfig{
	// maintenance
	"assign_technician": {
		Title:        "Maintenance request assigned",
		Message:      msg(`"{{index .Fields "title"}}" has been assigned to {{index .Params "technician_name"}}.`),
		Priority:     PriorityNormal,
		NotifyTenant: true,
		Type:         TypeInApp,
	},
	"put_on_hold": {
		Title:        "Maintenance request on hold",
		Message:      msg(`"{{index .Fields "title"}}" is on hold: {{index .Params "reason"}}`),
		Priority:     PriorityNormal,
		NotifyTenant: true,
		NotifyStaff:  true,
		Type:         TypeInApp,
	},
	"resume_request": {
		Title:        "Maintenance work resumed",
		Message:      msg(`Work on "{{index .Fields "title"}}" has resumed.`),
		Priority:     PriorityNormal,
		NotifyTenant: true,
		Type:         TypeInApp,
	},
	"complete_request": {
		Title:        "Maintenance request completed",
		Message:      msg(`"{{index .Fields "title"}}" has been completed.`),
		Priority:     PriorityNormal,
		NotifyTenant: true,
		NotifyStaff:  true,
		Type:         TypeEmail,
	},
	"cancel_request": {
		Title:        "Maintenance request cancelled",
		Message:      msg(`"{{index .Fields "title"}}" was cancelled: {{index .Params "reason"}}`),
		Priority:     PriorityNormal,
		NotifyTenant: true,
		Type:         TypeInApp,
	},
	"reopen_request": {
		Title:       "Maintenance request reopened",
		Message:     msg(`"{{index .Fields "title"}}" was reopened by {{.Actor}}.`),
		Priority:    PriorityHigh,
		NotifyStaff: true,
		Type:        TypeInApp,
	},

	// payments
	"start_processing": {
		Title:    "Payment processing",
		Message:  msg(`Payment {{.ID}} is being processed.`),
		Priority: PriorityLow,
		Type:     TypeInApp,
	},
	"verify_payment_completed": {
		Title:        "Payment received",
		Message:      msg(`Your payment of {{index .Fields "amount"}} has been received. Thank you.`),
		Priority:     PriorityNormal,
		NotifyTenant: true,
		Type:         TypeEmail,
	},
	"mark_failed": {
		Title:        "Payment failed",
		Message:      msg(`Payment of {{index .Fields "amount"}} failed: {{index .Params "reason"}}`),
		Priority:     PriorityHigh,
		NotifyTenant: true,
		NotifyStaff:  true,
		Type:         TypeEmail,
	},
	"retry_payment": {
		Title:    "Payment retry scheduled",
		Message:  msg(`Payment {{.ID}} is pending again.`),
		Priority: PriorityNormal,
		Type:     TypeInApp,
	},
	"refund_payment": {
		Title:        "Payment refunded",
		Message:      msg(`Payment of {{index .Fields "amount"}} was refunded: {{index .Params "reason"}}`),
		Priority:     PriorityNormal,
		NotifyTenant: true,
		NotifyStaff:  true,
		Type:         TypeEmail,
	},
	"cancel_payment": {
		Title:        "Payment cancelled",
		Message:      msg(`Payment {{.ID}} was cancelled.`),
		Priority:     PriorityNormal,
		NotifyTenant: true,
		Type:         TypeInApp,
	},

	// rental agreements
	"submit_for_approval": {
		Title:       "Agreement awaiting approval",
		Message:     msg(`Rental agreement {{.ID}} was submitted for approval by {{.Actor}}.`),
		Priority:    PriorityNormal,
		NotifyStaff: true,
		Type:        TypeInApp,
	},
	"activate_agreement": {
		Title:        "Rental agreement active",
		Message:      msg(`Your rental agreement starting {{index .Fields "start_date"}} is now active.`),
		Priority:     PriorityHigh,
		NotifyTenant: true,
		NotifyStaff:  true,
		Type:         TypeEmail,
	},
	"tenant_approve_agreement": {
		Title:        "Rental agreement approved",
		Message:      msg(`Rental agreement {{.ID}} was approved by {{.Actor}} and is now active.`),
		Priority:     PriorityHigh,
		NotifyTenant: true,
		NotifyStaff:  true,
		Type:         TypeInApp,
	},
	"terminate_agreement": {
		Title:        "Rental agreement terminated",
		Message:      msg(`Rental agreement {{.ID}} was terminated: {{index .Params "reason"}}`),
		Priority:     PriorityUrgent,
		NotifyTenant: true,
		NotifyStaff:  true,
		Type:         TypeEmail,
	},
	"expire_agreement": {
		Title:        "Rental agreement expired",
		Message:      msg(`Rental agreement {{.ID}} ended on {{index .Fields "end_date"}}.`),
		Priority:     PriorityNormal,
		NotifyTenant: true,
		NotifyStaff:  true,
		Type:         TypeInApp,
	},
	"renew_agreement": {
		Title:        "Rental agreement renewed",
		Message:      msg(`Rental agreement {{.ID}} was renewed until {{index .Params "end_date"}}.`),
		Priority:     PriorityNormal,
		NotifyTenant: true,
		Type:         TypeEmail,
	},
	"cancel_agreement": {
		Title:        "Rental agreement cancelled",
		Message:      msg(`Rental agreement {{.ID}} was cancelled.`),
		Priority:     PriorityNormal,
		NotifyTenant: true,
		Type:         TypeInApp,
	},

	// complaints
	"acknowledge_complaint": {
		Title:        "Complaint acknowledged",
		Message:      msg(`Your complaint "{{index .Fields "subject"}}" is being handled by {{.Actor}}.`),
		Priority:     PriorityNormal,
		NotifyTenant: true,
		Type:         TypeInApp,
	},
	"resolve_complaint": {
		Title:        "Complaint resolved",
		Message:      msg(`"{{index .Fields "subject"}}" was resolved: {{index .Params "resolution"}}`),
		Priority:     PriorityNormal,
		NotifyTenant: true,
		Type:         TypeEmail,
	},
	"close_complaint": {
		Title:        "Complaint closed",
		Message:      msg(`"{{index .Fields "subject"}}" has been closed.`),
		Priority:     PriorityLow,
		NotifyTenant: true,
		Type:         TypeInApp,
	},
	"reopen_complaint": {
		Title:       "Complaint reopened",
		Message:     msg(`"{{index .Fields "subject"}}" was reopened by {{.Actor}}.`),
		Priority:    PriorityHigh,
		NotifyStaff: true,
		Type:        TypeInApp,
	},

	// tenant compliance
	"submit_documents": {
		Title:       "Compliance documents submitted",
		Message:     msg(`{{index .Fields "name"}} submitted compliance documents for review.`),
		Priority:    PriorityNormal,
		NotifyStaff: true,
		Type:        TypeInApp,
	},
	"approve_compliance": {
		Title:        "Compliance approved",
		Message:      msg(`Your documents were reviewed and approved.`),
		Priority:     PriorityNormal,
		NotifyTenant: true,
		Type:         TypeEmail,
	},
	"reject_compliance": {
		Title:        "Compliance documents rejected",
		Message:      msg(`Your documents were rejected: {{index .Params "reason"}}`),
		Priority:     PriorityHigh,
		NotifyTenant: true,
		Type:         TypeEmail,
	},
	"flag_non_compliant": {
		Title:        "Compliance issue",
		Message:      msg(`Your account was flagged as non-compliant: {{index .Params "reason"}}`),
		Priority:     PriorityHigh,
		NotifyTenant: true,
		NotifyStaff:  true,
		Type:         TypeEmail,
	},
	"suspend_tenant": {
		Title:        "Account suspended",
		Message:      msg(`Your account was suspended: {{index .Params "reason"}}`),
		Priority:     PriorityUrgent,
		NotifyTenant: true,
		NotifyStaff:  true,
		Type:         TypeSMS,
	},
	"reinstate_tenant": {
		Title:        "Account reinstated",
		Message:      msg(`Your account was reinstated and is under review.`),
		Priority:     PriorityNormal,
		NotifyTenant: true,
		Type:         TypeEmail,
	},
}

func render(t *template.Template, data messageData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// stringify flattens values for templates so absent or nil entries render
// as empty text.
func stringify(in map[string]any) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch x := v.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = x
		case float64:
			out[k] = strconv.FormatFloat(x, 'f', 2, 64)
		case time.Time:
			out[k] = x.Format("2006-01-02")
		case *time.Time:
			if x != nil {
				out[k] = x.Format("2006-01-02")
			}
		case *string:
			if x != nil {
				out[k] = *x
			}
		default:
			out[k] = fmt.Sprint(v)
		}
	}
	return out
}
