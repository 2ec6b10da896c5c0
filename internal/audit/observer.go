package audit

import (
	"context"

	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

// Observer records every committed transition.
type Observer struct {
	svc *Service
}

func NewObserver(svc *Service) *Observer {
	return &Observer{svc: svc}
}

func (o *Observer) OnTransition(ctx context.Context, rec workflows.Record) error {
	metadata := map[string]any{}
	for k, v := range rec.Params {
		if k == "notes" {
			continue
		}
		metadata[k] = v
	}
	if rec.Description != "" {
		metadata["description"] = rec.Description
	}
	o.svc.LogWorkflowTransition(ctx, TransitionEntry{
		InstanceType: rec.Subject.SubjectType(),
		InstanceID:   rec.Subject.SubjectID(),
		Event:        rec.Event,
		OldState:     rec.Result.OldState,
		NewState:     rec.Result.NewState,
		Actor:        rec.Actor,
		Metadata:     metadata,
		Notes:        rec.Params.String("notes"),
	})
	return nil
}
