package schema

// DocumentList is the response for a collection path.
type DocumentList struct {
	Data []map[string]any `json:"data"`
}

// Document is the response for a document path.
type Document struct {
	Data           map[string]any `json:"data"`
	SubCollections []string       `json:"subcollections"`
}
