// Package vm implements the script runtime.
//
// This package contains:
//   - Value representation, type conversion and the object model
//   - Property tables with insertion order and shape ids
//   - Contexts, feature flags and interrupts
//   - The bytecode interpreter and the syntax tree interpreter
//   - Inline caches for optimized bytecode
//   - The standard built-in objects
package vm
