// Package lttvfilter implements the boolean filter engine (C7): a small
// recursive-descent parser over spec.md §4.7's grammar, producing a tree of
// AND/OR/XOR/NOT nodes and comparator leaves, evaluated per event against a
// closed set of field-path accessors (trace, tracefile, process, event).
//
// Grounded on the teacher's search.go query-language parser (hand-written
// recursive descent over text/scanner tokens, same as here) generalized
// from trc's flat key=value matchers to a full boolean expression tree.
package lttvfilter
