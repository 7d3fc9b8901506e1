// Package history records parameter change events to InfluxDB.
//
// This package manages:
//   - Connection to an InfluxDB v2 server with token authentication
//   - Non-blocking, batched writes of parameter changes
//   - Async error reporting for failed writes
//
// History is optional: when disabled in configuration, Connect returns
// ErrDisabled and the daemon runs without it. Writes are fire-and-forget
// so a slow or unreachable InfluxDB never blocks parameter mutation.
//
// # Usage
//
//	recorder, err := history.Connect(cfg.History)
//	if errors.Is(err, history.ErrDisabled) {
//	    // run without change history
//	} else if err != nil {
//	    return err
//	}
//	defer recorder.Close()
//
//	registry.SetChangeRecorder(func(name, kind string, value any) {
//	    recorder.WriteParamChange(name, kind, value)
//	})
package history
