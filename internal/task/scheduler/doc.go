// Package scheduler turns schedule strings into engine tasks.
//
// It only computes trigger times: each firing enqueues a task into
// engine.Service, which owns execution, overlap gating and history.
package scheduler
