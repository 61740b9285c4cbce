// Package pipeline wires the three correction stages together: input
// workers (windowing + feature extraction), inference workers (batched
// backend calls), and decode workers (prediction decode + reassembly).
//
// Stages communicate only through bounded asyncq queues; shutdown cascades
// stage by stage, with the last worker of each pool terminating the next
// queue.
package pipeline
