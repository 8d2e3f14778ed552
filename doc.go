// Package memscope holds the shared vocabulary of the pooled-allocator usage
// tooling: pool geometry, usage summaries and their consistency rules, and the
// error taxonomy the attachment and query packages report through.
package memscope
