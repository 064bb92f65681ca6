// Package app wires one ETL run: telemetry, the lazy warehouse connection,
// the step registry, the operation manager and the optional status server.
//
// # Usage
//
//	application, err := app.New(ctx, cfg, logger)
//	if err != nil {
//	    return err
//	}
//	defer application.Stop(ctx)
//	resp, err := application.Run(ctx)
package app
