package drive

// ResolveURL returns the browser URL for a Drive file.
// Google Workspace files open in their editor, everything else in the viewer.
func ResolveURL(fileID, mimeType string) string {
	if fileID == "" {
		return ""
	}
	switch mimeType {
	case MimeTypeGoogleDoc:
		return "https://docs.google.com/document/d/" + fileID + "/edit"
	case MimeTypeGoogleSheet:
		return "https://docs.google.com/spreadsheets/d/" + fileID + "/edit"
	case MimeTypeGoogleSlides:
		return "https://docs.google.com/presentation/d/" + fileID + "/edit"
	}
	return "https://drive.google.com/file/d/" + fileID + "/view"
}
