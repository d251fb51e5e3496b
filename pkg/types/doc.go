// Package types contains the shared data model of the task execution
// engine: steps, execution contexts, results, workers, resource handles,
// lifecycle events and the error taxonomy.
package types
