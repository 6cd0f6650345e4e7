// Package process runs many independent OS processes under a parallelism
// limit and collects their exit codes and output.
//
// The package has three layers:
//
// LaunchSpec is an immutable description of one process: a caller-chosen id,
// a fully escaped command line (see package escape), an optional working
// directory and an optional environment.
//
// Handle is the live state of one launched process:
//   - stdout is an anonymous pipe drained without blocking
//   - stderr goes to a temporary file, which avoids the full-pipe deadlock
//   - stdin is the null device
//   - output accumulates in buffers until the process exits
//
// Pool is the scheduler. It owns a FIFO queue of pending specs and the set of
// running handles. A single control flow admits specs while slots are free and
// runs drain passes over the running handles. It never blocks on a child:
//
//	pool, err := process.NewPool(process.PoolOptions{MaxParallel: 4})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	_ = pool.Submit(process.LaunchSpec{ID: "a", CommandLine: "'echo' 'hello'"})
//	_ = pool.Submit(process.LaunchSpec{ID: "b", CommandLine: "'echo' 'world'"})
//
//	results, err := pool.WaitAll(ctx, 30*time.Second)
//	if err != nil {
//	    // errors.Is(err, process.ErrTimeout), process.ErrLaunch, ...
//	}
//	fmt.Println(results["a"].ExitCode, string(results["a"].Stdout))
//
// A Pool is meant for one owner making one call at a time. Processes left
// running after a timeout keep running until Close kills and reaps them.
package process
