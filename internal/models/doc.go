// Package models defines domain entities and persistence interfaces for the ytmp3 download queue.
//
// The package contains two categories of types:
//
// 1. Pipeline values: immutable data handed between queue, pipeline and observers
//   - [Task] : One requested download (resource id plus optional file name)
//   - [Resource] / [Format] : Resolved metadata and selectable encoded variants
//   - [Stream] : An in-flight byte stream with its negotiated length
//   - [TaskResult] / [TransferStats] : Successful outcome with optional transfer summary
//   - [TaskError] / [ConfigurationError] : Failure values tagged with the failing [Stage]
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [Download] : History row written for every terminal task event
//
// All persistent entities implement the Model interface providing ID generation, timestamps, validation, and soft delete support.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
