// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

/*
Package services adapts reqaudit components that do not already speak
suture's Serve(ctx) error to the supervisor tree.

  - HTTPServerService: ListenAndServe/Shutdown to Serve, with a bounded drain
  - AccessLogIngestService: one-shot replay of an access-log file; returns
    suture.ErrDoNotRestart when done

The access-log adapter, queue consumer and retention scheduler implement
suture.Service themselves and are added to the tree directly.
*/
package services
