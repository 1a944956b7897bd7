// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

/*
Package supervisor runs reqaudit's long-lived services under a suture v4
tree.

# Tree

	reqaudit
	├── pipeline-layer
	│   ├── access-log-adapter
	│   └── queue-consumer        (async mode with consumer enabled)
	├── maintenance-layer
	│   ├── retention-scheduler   (scheduled cleanup enabled)
	│   └── access-log-ingest     (one-shot, ingest file configured)
	└── api-layer
	    └── http-server

Each layer has its own failure counter, so a consumer crash loop backs off
the pipeline layer without touching the HTTP server. Supervisor events are
logged through sutureslog onto the zerolog-backed slog logger.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddPipelineService(adapter)
	tree.AddAPIService(services.NewHTTPServerService(server, 15*time.Second))
	err = tree.Serve(ctx)

Services return suture.ErrDoNotRestart when they finish for good.
*/
package supervisor
