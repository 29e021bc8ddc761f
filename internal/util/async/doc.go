// Package async provides helpers for running independent operations
// concurrently.
//
// [RunParallel] executes side-effecting tasks and joins their errors.
// [Collect] gathers typed results in input order, which lets callers pick a
// deterministic winner from a concurrent fan-out.
package async
