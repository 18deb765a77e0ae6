// Package release runs a release end to end.
//
// An Orchestrator validates a Request, collects the source images, plans
// transformation configs, applies them on a bounded worker pool and packages
// the generated dataset into a zip archive.
//
// # Lifecycle
//
//	PENDING → LOADING_DATA → GENERATING_CONFIGURATIONS → PROCESSING_IMAGES
//	        → FINALIZING → CREATING_PACKAGE → COMPLETED
//
// FAILED is reachable from every non-terminal state. Configuration and data
// errors are returned synchronously from Start; everything after that runs on
// the Job's goroutine.
//
// # Progress
//
// Workers never touch progress directly. Each unit outcome is sent on a
// channel to a single aggregator goroutine, which is the only writer of the
// release's progress entry and result list. Pollers read copies from the
// Tracker.
package release
