// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for article-bot: the
// per-conversation state, upload jobs, answer requests, and configuration.
package types

import "time"

// ArticleRef locates the most recently extracted article of a conversation.
// TEIPath is the verified GROBID output and the document every answer
// provider receives. DigestPath is the plain-text JSON extract written next
// to it for the catalog and the extract command.
type ArticleRef struct {
	UploadID   string `json:"upload_id" yaml:"upload_id"`
	Dir        string `json:"dir" yaml:"dir"`
	FileName   string `json:"file_name" yaml:"file_name"`
	SourcePath string `json:"source_path" yaml:"source_path"`
	TEIPath    string `json:"tei_path" yaml:"tei_path"`
	DigestPath string `json:"digest_path,omitempty" yaml:"digest_path,omitempty"`

	// Title is taken from the TEI header when it could be parsed.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
}

// IsZero reports whether no article has been extracted yet.
func (r ArticleRef) IsZero() bool {
	return r.TEIPath == ""
}

// ConversationState is the transient state of one chat session. It lives in
// memory for the lifetime of the process.
type ConversationState struct {
	// Article is nil until a PDF has been processed successfully.
	Article *ArticleRef `json:"article,omitempty" yaml:"article,omitempty"`

	// LastSummary is the unescaped text of the last successful /resumo.
	LastSummary string `json:"last_summary,omitempty" yaml:"last_summary,omitempty"`

	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// HasArticle reports whether the session is in the ArticleReady state.
func (s ConversationState) HasArticle() bool {
	return s.Article != nil && !s.Article.IsZero()
}

// UploadJob is one PDF upload and its working directory. A manifest of the
// job is written into Dir as job.yaml.
type UploadJob struct {
	ID         string    `json:"id" yaml:"id"`
	Session    string    `json:"session" yaml:"session"`
	Dir        string    `json:"dir" yaml:"dir"`
	FileName   string    `json:"file_name" yaml:"file_name"`
	SourcePath string    `json:"source_path" yaml:"source_path"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`

	// Extracted is set only after the artifact's existence was verified.
	Extracted string `json:"extracted,omitempty" yaml:"extracted,omitempty"`
}

// AnswerRequest is one summarize or question turn sent to the LLM provider.
type AnswerRequest struct {
	Instruction string
	Article     ArticleRef
}
