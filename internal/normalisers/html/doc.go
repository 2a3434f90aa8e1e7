// Package html turns HTML pages into plain text for chunking. Script and
// style bodies are dropped, block elements become line breaks and entities
// are decoded, so chunk offsets refer to the visible text only.
package html
