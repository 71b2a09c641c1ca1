// Package dispatch launches change-record explanations in the background.
//
// Goroutine runs explanations in-process and is the default. Asynq
// enqueues them on Redis for a separate worker process.
package dispatch
