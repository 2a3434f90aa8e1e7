// Package normalisers turns raw source bytes into plain-text documents.
//
// Each subpackage handles a family of MIME types. The Registry in this
// package dispatches a raw document to the highest-priority normaliser
// that supports its MIME type.
package normalisers
