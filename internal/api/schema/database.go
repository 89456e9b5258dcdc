package schema

// DatabaseCreated is the response of an idempotent database create.
type DatabaseCreated struct {
	Name    string `json:"name"`
	Created bool   `json:"created"`
}

// CollectionCreated is the response of a collection create.
type CollectionCreated struct {
	Database string `json:"database"`
	Name     string `json:"name"`
	Path     string `json:"path"`
}
