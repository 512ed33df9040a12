// SPDX-License-Identifier: MPL-2.0

// Package benchmark holds benchmarks for the hot paths of a batch:
//   - plan decoding (CUE schema validation and HCL)
//   - execution context construction with dotenv overlays
//   - dispatching wide batches of migrated steps
//   - embedded shell execution
//
// They double as the workload for PGO profiles:
//
//	go test ./internal/benchmark -bench . -cpuprofile default.pgo
package benchmark
