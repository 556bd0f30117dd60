package models

// Metadata keys shared by documents and chunks
const (
	MetaSource     = "source"
	MetaFileName   = "file_name"
	MetaPage       = "page"
	MetaTotalPages = "total_pages"
	MetaDocID      = "doc_id"
	MetaStartIndex = "start_index"
)

// Document represents the extracted text of a single PDF page
type Document struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// Chunk represents a bounded span of a Document used for embedding and retrieval
type Chunk struct {
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata"`
	StartIndex int            `json:"start_index"`
}

// Role identifies the author of a chat message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents one turn of the chat history
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UploadResult describes what happened to an uploaded PDF
type UploadResult struct {
	FileName  string `json:"file_name"`
	Path      string `json:"path"`
	DocID     string `json:"doc_id"`
	Pages     int    `json:"pages"`
	Chunks    int    `json:"chunks"`
	Duplicate bool   `json:"duplicate"`
}

// CloneMetadata returns a shallow copy of m that is safe to extend
func CloneMetadata(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
