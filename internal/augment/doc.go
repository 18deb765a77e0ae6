// Package augment applies generated configs to images.
//
// An Engine runs the steps of a planner.Config in order. Photometric steps
// change pixels only. Geometric steps also move every annotation through the
// step's point mapper, and the running image size is taken from the actual
// output of each step. After the last step annotations are clamped to the
// final image and degenerate ones are dropped.
package augment
