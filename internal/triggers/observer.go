package triggers

import (
	"context"

	"go.uber.org/zap"

	"rentflow/property-portal/property-portal-backend/internal/models"
	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

type firingKey struct{}

// withFiring marks ctx as running trigger actions. Transitions made under
// it do not evaluate event triggers again.
func withFiring(ctx context.Context) context.Context {
	return context.WithValue(ctx, firingKey{}, true)
}

func firing(ctx context.Context) bool {
	v, _ := ctx.Value(firingKey{}).(bool)
	return v
}

// Observer evaluates event triggers after every committed transition.
type Observer struct {
	svc *Service
}

func NewObserver(svc *Service) *Observer {
	return &Observer{svc: svc}
}

func (o *Observer) OnTransition(ctx context.Context, rec workflows.Record) error {
	if firing(ctx) {
		return nil
	}
	target, ok := rec.Subject.(models.Entity)
	if !ok {
		return nil
	}
	data := map[string]any{
		"old_state": string(rec.Result.OldState),
		"new_state": string(rec.Result.NewState),
	}
	for k, v := range rec.Params {
		data[k] = v
	}
	results, err := o.svc.ProcessTriggersForInstance(ctx, target, string(rec.Event), data, rec.Actor)
	if err != nil {
		return err
	}
	for _, r := range results {
		if !r.Success {
			o.svc.logger.Warn("Event trigger failed",
				zap.String("trigger", r.TriggerName),
				zap.String("event", string(rec.Event)),
				zap.String("error", r.Error))
		}
	}
	return nil
}
