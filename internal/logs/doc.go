// Package logs collects, searches and archives node logs.
//
// Collection fans out one rsync per machine through a bounded pool, then
// retries each failure once, sequentially, after removing the machine's
// known-hosts entry. Search fans out an rg invocation over SSH. Both write
// only below <root>/logs/<deployment>/<machine>/ and report per-machine
// outcomes instead of failing the batch.
package logs
