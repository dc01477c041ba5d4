package remediation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"aegis-hq/sentinel/pkg/policy/bundle"
)

// TargetClient is the idempotent execution interface remediation targets
// expose. A command issued twice with the same idempotency key must not
// produce the side effect twice; that contract belongs to the target, the
// engine only supplies a stable key.
type TargetClient interface {
	// Invoke issues a command against the target identified in params and
	// returns a target-side reference (e.g., a transaction hash).
	Invoke(ctx context.Context, command, idempotencyKey string, params map[string]string) (string, error)
}

// Alerter delivers operator notifications for alert-only actions.
type Alerter interface {
	Notify(ctx context.Context, subject, body string) error
}

// PermanentError marks a target failure as non-retryable. Handlers map it
// to OutcomeFailedPermanent; everything else is treated as transient.
type PermanentError struct {
	Err error
}

// Error implements the error interface.
func (e *PermanentError) Error() string { return "permanent: " + e.Err.Error() }

// Unwrap returns the wrapped error.
func (e *PermanentError) Unwrap() error { return e.Err }

// RegisterBuiltins registers the standard capability set on the registry:
// pause, throttle, freeze-access against the target client, alert-only
// against the alerter. The custom kind is left for operator registration.
func RegisterBuiltins(registry *Registry, target TargetClient, alerter Alerter) {
	registry.Register(bundle.ActionPause, "pause",
		"suspend the implicated subsystem until manually resumed",
		targetHandler(target, "pause"))
	registry.Register(bundle.ActionThrottle, "throttle",
		"reduce the implicated subsystem's throughput",
		targetHandler(target, "throttle"))
	registry.Register(bundle.ActionFreezeAccess, "freeze-access",
		"revoke access for the implicated account or vendor",
		targetHandler(target, "freeze-access"))
	registry.Register(bundle.ActionAlertOnly, "alert-only",
		"notify operators without touching the target",
		alertHandler(alerter))
}

// targetHandler builds a Handler that issues a single command to the target.
func targetHandler(target TargetClient, command string) Handler {
	logger := slog.Default().With("component", "remediation.handler", "command", command)
	return HandlerFunc(func(ctx context.Context, key string, payload ActionPayload) Outcome {
		ref, err := target.Invoke(ctx, command, key, map[string]string{
			"subject":      payload.CorrelationKey,
			"rule_id":      payload.RuleID,
			"evidence_ref": payload.EvidenceRef,
		})
		if err != nil {
			return classifyTargetError(logger, key, err)
		}
		logger.Info("target command applied", "idempotency_key", key, "subject", payload.CorrelationKey, "ref", ref)
		return Outcome{Kind: OutcomeSuccess, Output: ref}
	})
}

// alertHandler builds the alert-only Handler. Alert delivery failures are
// transient; an alert that cannot be delivered is worth retrying.
func alertHandler(alerter Alerter) Handler {
	return HandlerFunc(func(ctx context.Context, key string, payload ActionPayload) Outcome {
		subject := fmt.Sprintf("risk condition on %s (severity %d)", payload.CorrelationKey, payload.Severity)
		body := fmt.Sprintf("rule %s matched; evidence: %s; idempotency key %s",
			payload.RuleID, payload.EvidenceRef, key)
		if err := alerter.Notify(ctx, subject, body); err != nil {
			return Outcome{Kind: OutcomeFailedTransient, Error: err.Error()}
		}
		return Outcome{Kind: OutcomeSuccess, Output: "alert delivered"}
	})
}

func classifyTargetError(logger *slog.Logger, key string, err error) Outcome {
	var permanent *PermanentError
	if errors.As(err, &permanent) {
		logger.Warn("target command failed permanently", "idempotency_key", key, "error", err)
		return Outcome{Kind: OutcomeFailedPermanent, Error: err.Error()}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Outcome{Kind: OutcomeTimeout, Error: err.Error()}
	}
	logger.Warn("target command failed", "idempotency_key", key, "error", err)
	return Outcome{Kind: OutcomeFailedTransient, Error: err.Error()}
}

// LogAlerter is the default Alerter: it writes alerts to the structured
// log. Deployments integrate paging systems by replacing it.
type LogAlerter struct{}

// Notify implements Alerter.
func (LogAlerter) Notify(_ context.Context, subject, body string) error {
	slog.Default().With("component", "remediation.alert").Warn(subject, "detail", body)
	return nil
}
