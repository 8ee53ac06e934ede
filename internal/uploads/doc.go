// Package uploads stores user-uploaded datasets on disk and keeps an
// in-memory history of them.
//
// Each upload lives in its own directory under the uploads root:
//
//	<uploads>/<uuid>/<sanitized filename>
//	<uploads>/<uuid>/upload.json
//
// The metadata file lets Restore rebuild the history after a restart. A
// Janitor removes uploads older than the configured retention on a cron
// schedule.
//
// Example usage:
//
//	store, err := uploads.NewStore(uploads.Options{
//	    Dir:               paths.UploadsDir,
//	    AllowedExtensions: cfg.Uploads.AllowedExtensions,
//	    MaxBytes:          cfg.Server.MaxUploadBytes,
//	    HistoryLimit:      cfg.Uploads.HistoryLimit,
//	}, logger)
//
//	up, err := store.Save(ctx, header.Filename, domain.AnalysisMoca, file)
package uploads
