// Package agent runs duty-cycle agents on their own goroutines.
//
// An Agent does a bounded unit of work per DoWork call and reports how much
// it did. A Runner loops DoWork, hands the work count to an IdleStrategy, and
// stops on the first error. Barrier is the one-shot shutdown signal shared by
// every agent of one exchange.
package agent
