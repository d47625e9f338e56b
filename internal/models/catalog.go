package models

// Module is a learning module shown in the course catalog.
type Module struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Language    Language `json:"language"`
	Position    int      `json:"order"`
}

type Lesson struct {
	ID       int64  `json:"id"`
	ModuleID int64  `json:"module_id"`
	Title    string `json:"title"`
	Content  string `json:"content,omitempty"`
	Position int    `json:"order"`
}

// Resource is a downloadable study document.
type Resource struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Type        string   `json:"type"`
	FileName    string   `json:"file_name"`
	Language    Language `json:"language"`
}
