// Package tasks turns resource ids into tagged MP3 files with real-time progress reporting.
//
// # Components
//
//  1. [Queue] : bounded FIFO admission
//     - At most maxConcurrency pipelines run at once
//     - Every pushed task gets exactly one completion callback
//     - Waiting tasks can be cancelled; running tasks cannot
//     - Panics in a run are recovered and reported as failures
//
//  2. [Pipeline] : per-task stages
//     - Resolve metadata through a [services.Source]
//     - Select a format and acquire the byte stream
//     - Track progress and transcode into the output file
//
//  3. [Reporter] : outward notifications
//     - queueSize after every admission change
//     - progress for every sample of an active task
//     - exactly one finished or error per task
//
// # Progress Reporting
//
// Handlers registered with the On* methods run synchronously. [Reporter.Subscribe]
// exposes the same events on a channel; depth and progress updates use select with
// default so a slow consumer never stalls a pipeline.
//
// # Implementation
//
// [Downloader] wires the three together from [Options] and is the public entry point:
// [Downloader.Enqueue] is fire-and-forget and returns only the task id.
package tasks
