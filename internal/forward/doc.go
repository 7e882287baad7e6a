// Package forward moves frames from a capture device to an output device.
//
// A run negotiates a common format, opens one memory-mapped stream on each
// device, discards a warmup frame and then performs Count timed
// acquire/release pairs while keeping a running mean of the throughput:
//
//	fwd := forward.New(source, sink, forward.Config{Count: 100, Buffers: 4},
//		forward.WithReporter(reporter),
//		forward.WithLogger(logging.GetLogger("forward")),
//	)
//	summary, err := fwd.Run()
//
// The loop is single-threaded. Acquire and Release block until the driver
// is ready, and every failure aborts the run without retry. Status may be
// read from other goroutines while Run is in progress.
//
// # States
//
//	idle -> negotiated -> streaming -> done
//	  any state         ->            aborted
package forward
