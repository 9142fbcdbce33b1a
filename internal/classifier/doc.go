// Package classifier runs page text through a remote spoiler classifier.
//
// The pipeline has four stages:
//
//  1. Collector picks text-bearing elements (skipping navigation, forms,
//     and other structural chrome matched by Blacklist) and splits their
//     text into sentence chunks.
//  2. Cache answers chunks that were classified before.
//  3. Batcher sends the rest to the Client in fixed-size batches, one at a
//     time with a short pause in between.
//  4. Verdicts are cached and handed back per batch.
//
// Every failure fails open: a batch that errors, times out or returns
// garbage counts as "not a spoiler" and the next batch proceeds.
package classifier
