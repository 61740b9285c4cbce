// Package asyncq provides the bounded FIFO that joins pipeline stages.
//
// The only contract is Queue[T] with Push/Pop/PopUntil/Terminate; termination
// is cooperative and never discards queued work.
package asyncq
