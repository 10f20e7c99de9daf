// Package result turns pumped process output into typed values.
//
// A Builder accumulates the bytes written by the engine's stream pumps and
// materializes them on Build. A Factory hands out fresh builders, one per
// call, and is what a method declaration references. Builders are not safe
// for concurrent invocations; a caller reusing one across calls resets it in
// between.
package result
