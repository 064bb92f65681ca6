// Package operations runs the film ETL as a sequence of steps.
//
// Manager executes the steps held by a Registry in dependency order, one at a
// time. The first failing step aborts the run; the steps after it are marked
// skipped. Every run and step gets an OpenTelemetry span and is counted on the
// ETL metrics, and Manager.Current exposes a copy of the run state for the
// status server.
//
// The ETL steps pass their results to each other through the OperationState
// context:
//
//	extract   -> raw_table
//	transform -> records, clean_report
//	map       -> star
//	load      -> db
//	verify    -> load_summary
//	export    -> export_result (only when an export directory is set)
//
// Example usage:
//
//	registry, err := operations.NewPipelineRegistry(operations.PipelineOptions{
//		Source:    dataprocessing.NewSource(cfg.Source),
//		Connector: warehouse.NewConnection(cfg.Database, logger),
//		BatchSize: cfg.Database.BatchSize,
//		Logger:    logger,
//	})
//	manager := operations.NewManager(registry, nil, operations.NewOperationTracer(providers), logger)
//	resp, err := manager.Execute(ctx, operations.OperationRequest{ID: runID})
package operations
