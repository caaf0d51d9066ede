// Package core defines the Record that flows through every docpipe stage and
// the rules for mapping flat key-value rows onto it.
//
// A FeatureMap names which raw keys hold the document text, the embedding, the
// id and the metadata. Remap is strict about requested keys; ToFlat is lenient
// and skips metadata keys the record does not carry.
package core
