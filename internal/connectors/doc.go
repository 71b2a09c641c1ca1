// Package connectors holds the document-store collaborators that list
// files and fetch their text for the change classifier.
//
// Each sub-package implements driven.FileLister for one storage system
// (local folder, Google Drive).
package connectors
