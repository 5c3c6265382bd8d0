// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package answer

import (
	"bytes"
	"strings"
	"text/template"
)

// DefaultSummaryTopics are the topics a /resumo answer covers.
var DefaultSummaryTopics = []string{
	"Título",
	"Data de publicação",
	"Autores",
	"Publisher",
	"Resumo em um tweet",
	"Panorama",
	"Principais achados",
	"Total estimado de referências",
}

const referencesTopic = "Total estimado de referências"

var summaryTmpl = template.Must(template.New("summary").Funcs(template.FuncMap{
	"join": func(items []string) string {
		quoted := make([]string, len(items))
		for i, it := range items {
			quoted[i] = `"` + it + `"`
		}
		return strings.Join(quoted, ", ")
	},
}).Parse(`Pergunta baseada no artigo em anexo, estruturado em XML/TEI:

Responda aos seguintes tópicos: {{join .Topics}}. Os dados bibliográficos estão no bloco <teiHeader> e o conteúdo no bloco <body>.{{if .CountReferences}} Para "` + referencesTopic + `", considere cada bloco <biblStruct> do bloco <listBibl> como 1 referência.{{end}} A resposta deve estar em português (PT-BR), porém, ao referenciar trechos de textos, mantenha o idioma original. Não indicar o bloco, somente o tópico, na resposta e em plain text.`))

var questionTmpl = template.Must(template.New("question").Parse(`Pergunta baseada no artigo em anexo, estruturado em XML/TEI:

'{{.}}'

Responda de forma objetiva, em português (PT-BR) e em plain text, porém, ao referenciar trechos de textos, mantenha o idioma original.`))

// SummaryInstruction renders the /resumo instruction for topics, falling
// back to DefaultSummaryTopics when topics is empty.
func SummaryInstruction(topics []string) string {
	if len(topics) == 0 {
		topics = DefaultSummaryTopics
	}
	count := false
	for _, t := range topics {
		if t == referencesTopic {
			count = true
		}
	}

	var buf bytes.Buffer
	summaryTmpl.Execute(&buf, struct {
		Topics          []string
		CountReferences bool
	}{topics, count})
	return buf.String()
}

// QuestionInstruction wraps the user's raw text in the question prompt.
func QuestionInstruction(question string) string {
	var buf bytes.Buffer
	questionTmpl.Execute(&buf, question)
	return buf.String()
}
