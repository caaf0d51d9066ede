// Package reembed replaces the embeddings of every record in a vector store
// collection.
//
// Records are read a page at a time, their text is embedded with the
// configured ai.Embedder and the page is upserted back under the same ids.
// Records without text keep their embedding. Writes are retried with
// exponential backoff and vectors may be normalized to unit length for
// cosine distance collections.
package reembed
