// Package model provides the data structures shared by the pipeline package and its options.
// It defines the steps of a pipeline, the information describing each step and the interface
// that pipeline options implement to observe the steps.
package model
