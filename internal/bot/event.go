// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bot

import (
	"strings"
)

// Command names accepted by the bot.
const (
	CommandStart     = "start"
	CommandSummarize = "resumo"
	CommandHelp      = "suporte"
)

const pdfMimeType = "application/pdf"

// Kind classifies an inbound event.
type Kind int

const (
	KindIgnored Kind = iota
	KindStart
	KindHelp
	KindSummarize
	KindDocument
	KindText
)

var kindNames = map[Kind]string{
	KindIgnored:   "ignored",
	KindStart:     "start",
	KindHelp:      "help",
	KindSummarize: "summarize",
	KindDocument:  "document",
	KindText:      "text",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Sender identifies who sent an event.
type Sender struct {
	ID       int64
	Username string
}

// Document is an uploaded file attached to an event.
type Document struct {
	FileID   string
	FileName string
	MimeType string
	Size     int64
}

// IsPDF reports whether the document is a PDF, by MIME type or extension.
func (d Document) IsPDF() bool {
	if strings.EqualFold(d.MimeType, pdfMimeType) {
		return true
	}
	return d.MimeType == "" && strings.HasSuffix(strings.ToLower(d.FileName), ".pdf")
}

// Event is one inbound chat message, already decoded by the transport.
type Event struct {
	// Session is the chat the event belongs to; replies go back to it.
	Session   int64
	Sender    Sender
	MessageID int

	// Command is the command name without the leading slash, or empty.
	Command  string
	Text     string
	Document *Document
}

// Kind classifies the event. Unknown commands and non-PDF documents are
// ignored.
func (e Event) Kind() Kind {
	switch {
	case e.Command != "":
		switch strings.ToLower(e.Command) {
		case CommandStart:
			return KindStart
		case CommandHelp:
			return KindHelp
		case CommandSummarize:
			return KindSummarize
		}
		return KindIgnored
	case e.Document != nil:
		if e.Document.IsPDF() {
			return KindDocument
		}
		return KindIgnored
	case strings.TrimSpace(e.Text) != "":
		return KindText
	}
	return KindIgnored
}
