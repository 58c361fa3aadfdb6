// Package internaldefs holds the metric names, help strings and histogram
// bucket bounds used by the exporters.
//
// # What this package must NOT do
//
//   - Perform I/O.
package internaldefs
