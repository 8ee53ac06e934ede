// Package services implements the workflow between the HTTP handlers and
// the scoring engines.
//
// AnalysisService owns the upload → preview → analyze → export sequence.
// It keeps the last result of every upload in memory, collapses identical
// concurrent runs into one computation and publishes progress events to
// websocket dashboards.
//
// HealthService reports liveness, readiness and build information.
//
// Services return errors from the errors package so the HTTP layer can map
// them to problem details:
//
//	rec, err := svc.Run(ctx, id, api.AnalyzeRequest{AnalysisType: domain.AnalysisMoca})
//	if err != nil {
//	    errorHandler.HandleError(w, r, err)
//	    return
//	}
package services
