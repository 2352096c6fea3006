// Package ezflow contains the core types for the ezflow distributed
// dataflow engine. A pipeline of column-transforming stages
// (rise -> map/filter/reduce/reduceAll/zip -> dump) is composed with the
// dataflow package and executed across a fixed pool of communicating
// worker processes by the karta scheduler, partitioning rows by key so
// that per-key aggregation stays correct while exploiting data
// parallelism.
//
// This package holds only the types and interfaces shared across the
// engine. Implementations live under internal/, with public entry points
// in the dataflow, algorithms, cluster, query and karta packages.
package ezflow
