// Package memory provides long-term semantic memory for conversational agents.
//
// Every conversation turn worth keeping is embedded and appended to a
// per-scope vector index, alongside a parallel log of the raw turns. Before
// the agent answers, the most similar past turns are pulled back out and
// rendered into a short context block for the prompt.
//
// Architecture:
//   - Embedder: text to unit-length vector (ONNX model locally, hashing in tests)
//   - index.Index: exact L2 search over the stored vectors, CPU or accelerator
//   - Store: one scope's index and records, deduplication, persistence
//   - Registry: opens one Store per scope on demand for the agent
//
// Integration:
//   - RETRIEVE: Store.SearchRelevantContext before the model is called
//   - RECORD: Store.Add, or Store.Remember to let an Extractor decide first
//
// On disk a scope lives in <root>/<scope>/ as index.bin and metadata.json,
// plus summaries/ when extracted summaries are kept. Both files are written
// on Save and read back by Open; nothing is ever deleted.
//
// A Store is safe for concurrent use within one process. Two processes
// opening the same scope will overwrite each other's saves.
package memory
