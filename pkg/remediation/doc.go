// Package remediation executes the actions policy decisions select. A
// registry maps the capability set (pause, throttle, freeze-access,
// alert-only, custom) to handlers sharing one execute contract; the
// dispatcher bounds executions with a timeout and short-circuits through a
// durable idempotency store so retries and crash-resume never duplicate a
// side effect.
package remediation
