// Package pipeline provides a pipeline for processing data.
//
// A pipeline is a chain of steps connected by channels. A root step produces values, intermediate steps transform
// them (one to one or one to many) and a sink consumes them. Each intermediate step can run several goroutines
// concurrently, which turns it into a bounded worker pool reading from the same input channel.
//
// The pipeline stops on the first error returned by any step: the shared context is cancelled, every step drains
// and Run returns the error decorated with the name of the step that produced it. Steps that must not stop the
// pipeline should report failures in the values they emit rather than as errors.
//
// Options implementing model.PipelineOption observe the steps as they are created and as values flow through them.
// The measure and drawer packages provide options to collect timings and to draw the pipeline as a DOT graph.
package pipeline
