// Package app wires pricinglab together and owns its lifecycle.
//
// NewApplication resolves paths, starts logging and OpenTelemetry, restores
// the upload store, builds the export backends and services, and mounts the
// router. Optional backends degrade instead of failing startup: a missing
// Chrome binary or unusable Sheets credentials only disable that format.
//
//	application, err := app.NewApplication(nil) // config.Load()
//	if err != nil {
//		return err
//	}
//	return application.Run()
//
// Run blocks until SIGINT or SIGTERM, then Stop shuts down the HTTP server,
// the upload janitor, the websocket hub and the telemetry providers, and
// closes the log file. Initialization errors are returned, never os.Exit'd.
package app
