// Package async provides generic helpers for running computations
// concurrently and joining their results.
//
// The package is centred around the generic type Future that represents the
// eventual result of an asynchronous operation. A Future is obtained by
// calling Async, which starts the supplied function in its own goroutine and
// immediately returns a *Future instance. The caller can then wait for
// completion with Await or join a whole set with Settle.
//
// Settle is the batch fan-out primitive: it waits for every future, never
// aborts early, and returns one Result per future preserving input order -
// a failed member surfaces as its own Result.Err without affecting siblings.
//
//	futures := make([]*async.Future[string], len(keys))
//	for i, key := range keys {
//	    futures[i] = async.Async(ctx, key, deliver)
//	}
//	for i, res := range async.Settle(futures...) {
//	    // res.Value or res.Err, in the order of keys
//	}
package async
