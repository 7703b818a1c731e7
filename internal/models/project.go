// internal/models/project.go
package models

// Project 写作项目
type Project struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

// DocumentType 文档节点类型
type DocumentType string

const (
	DocumentChapter   DocumentType = "chapter"
	DocumentScene     DocumentType = "scene"
	DocumentNote      DocumentType = "note"
	DocumentReference DocumentType = "reference"
	DocumentFolder    DocumentType = "folder"
)

// Document 项目文档树中的一个节点
type Document struct {
	ID        string       `json:"id"`
	ProjectID string       `json:"projectId"`
	Title     string       `json:"title"`
	Content   string       `json:"content"`
	CreatedAt int64        `json:"createdAt"`
	UpdatedAt int64        `json:"updatedAt"`
	WordCount int          `json:"wordCount"`
	Type      DocumentType `json:"type"`
	ParentID  string       `json:"parentId,omitempty"`
	Order     int          `json:"order"`
}
