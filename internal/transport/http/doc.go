// Package http exposes the analysis workflow over a chi router. Handlers
// stay thin: they parse and validate the request, call a service and render
// the answer. Every failure is written as an RFC 7807 problem through
// errors.ErrorHandler.
//
// # Routes
//
//	POST   /api/uploads                    multipart file + analysis_type
//	GET    /api/uploads                    history (?limit=&status=)
//	GET    /api/uploads/{id}               one upload
//	DELETE /api/uploads/{id}               remove an upload (audited)
//	GET    /api/uploads/{id}/preview       head of the table, missing columns
//	POST   /api/uploads/{id}/analyze       JSON AnalyzeRequest
//	GET    /api/uploads/{id}/result        last result
//	GET    /api/uploads/{id}/export-options
//	GET    /api/uploads/{id}/export        ?format=csv|xlsx|pdf|sheets
//	GET    /api/dashboard
//	GET    /api/health, /api/health/ready, /api/health/live, /api/health/stats
//	GET    /api/version
//	GET    /ws                             websocket event stream
//	GET    /metrics                        Prometheus scrape
//
// Handlers depend on AnalysisServiceInterface and HealthServiceInterface
// rather than the concrete services, so tests drive them with testify mocks:
//
//	svc := new(MockAnalysisService)
//	svc.On("Get", mock.Anything, id).Return(upload, nil)
//	router := NewRouter(RouterConfig{Logger: logger, Analysis: svc})
//
// Exports other than sheets are streamed as attachments with a
// Content-Disposition filename; sheets answers with the publication as JSON.
package http
