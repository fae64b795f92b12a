package logger

import (
	"github.com/shepherd-chms/pagecat/events"
)

// EventHandler returns an events.EventHandler that logs generator events.
// Traces are logged at debug level.
func EventHandler(l Logger) events.EventHandler {
	return func(e events.Event) {
		switch e := e.(type) {
		case events.Trace:
			l.Debug(e.Message, map[string]interface{}{"id": e.ID})
		case events.ContentFetched:
			fields := map[string]interface{}{
				"id":       e.ID,
				"app_name": e.AppName,
				"plans":    e.PlanCount,
			}
			if e.DefaultedName {
				l.Warn("application name not set in store, using fallback", fields)
				return
			}
			l.Info("content fetched", fields)
		case events.RetrievalFailed:
			l.WithError(e.Error).Error("content retrieval failed",
				map[string]interface{}{"id": e.ID})
		case events.Rendered:
			fields := map[string]interface{}{
				"id":   e.ID,
				"path": e.Path,
			}
			switch {
			case e.DidRender:
				l.Info("page written", fields)
			case e.WouldRender:
				l.Info("page not written", fields)
			}
		case events.WriteFailed:
			l.WithError(e.Error).Error("page write failed", map[string]interface{}{
				"id":   e.ID,
				"path": e.Path,
			})
		}
	}
}
