// Package connectors provides document sources for ingestion. Each
// subpackage fetches raw documents from one kind of location (a local
// directory, an S3 bucket) and hands them to the ingestion service.
package connectors
