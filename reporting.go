package apiclient

import (
	"context"
	"strconv"

	"github.com/getsentry/sentry-go"

	"github.com/michaelayoade/dotmac-shared-sub011/notify"
)

// report forwards a surfaced failure to Sentry and to the notification store.
// Aborts are the caller's own doing and are not reported.
func (d *Dispatcher) report(ctx context.Context, err error, method, target string) {
	if err == nil || isAbort(err) {
		return
	}

	d.publishFailure(err, method, target)

	hub := d.sentryHub
	if hub == nil {
		hub = sentry.GetHubFromContext(ctx)
	}
	if hub == nil {
		return
	}

	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("method", method)
		scope.SetTag("endpoint", endpointFromURL(target))
		scope.SetTag("error_type", ErrorType(err))
		if status, ok := StatusCode(err); ok {
			scope.SetTag("status_code", strconv.Itoa(status))
		}
		scope.SetExtra("url", target)
		if d.session != nil {
			if user := d.session.User(); user != nil && user.ID != "" {
				scope.SetUser(sentry.User{ID: user.ID, Email: user.Email})
			}
		}
		hub.CaptureException(err)
	})
}

func (d *Dispatcher) publishFailure(err error, method, target string) {
	if d.notifier == nil {
		return
	}
	d.notifier.Publish(notify.Notification{
		Level:   notify.LevelError,
		Title:   method + " " + target + " failed",
		Message: err.Error(),
	})
}
