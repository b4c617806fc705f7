// Package intent infers whether a free-form prompt asks for an image.
//
// Inference is a deterministic substring heuristic over a fixed bilingual
// trigger list; the first trigger found wins and no match means chat. It
// only runs when the client did not select a mode itself.
package intent
