// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bot

import (
	"fmt"

	"github.com/pdiddy/article-bot/internal/markup"
)

// Format selects how the transport renders a reply.
type Format int

const (
	// FormatPlain sends text with no parse mode; nothing is escaped.
	FormatPlain Format = iota

	// FormatMarkdownV2 sends text that is already valid MarkdownV2.
	FormatMarkdownV2
)

// Reply is one outbound message.
type Reply struct {
	Text   string
	Format Format
}

// Plain returns a plain-text reply.
func Plain(text string) Reply { return Reply{Text: text} }

// Markdown returns a reply whose text is already escaped MarkdownV2.
func Markdown(text string) Reply { return Reply{Text: text, Format: FormatMarkdownV2} }

// Fixed reply texts.
const (
	msgWelcome = "Envie seu artigo científico, aguarde a análise e faça suas perguntas.\n\nDigite /suporte para obter ajuda."

	msgProcessing     = "⏳ GROBID: processando... (≤1 min)"
	msgUnreachable    = "Verifique o servidor do GROBID.\nErro: %v"
	msgOutputMissing  = "Erro: O arquivo XML não foi gerado. Verifique o servidor do GROBID."
	msgDownloadFailed = "Não foi possível receber o arquivo.\nErro: %v"
	msgProcessed      = "Artigo processado! Envie /resumo para gerar um resumo ou faça perguntas."

	msgNoArticleText    = "Envie um artigo para análise."
	msgNoArticleSummary = "Nenhum artigo foi enviado ainda. Envie um PDF para análise."

	msgGenerating   = "⏳ %s: gerando resposta... (≤1 min)"
	msgSummaryTitle = "Resumo:\n\n"
	msgFollowUp     = "Se preferir, pergunte algo sobre o artigo."

	// MsgAccessDenied is sent once to a sender outside the allow-list.
	MsgAccessDenied = "Acesso negado. Você não tem permissão para usar este bot."
)

// maxErrorText bounds the raw error text echoed in diagnostics.
const maxErrorText = 1024

// HelpText renders the pre-escaped MarkdownV2 help message.
func HelpText(provider, version, contact string) string {
	esc := markup.EscapeMarkdownV2
	text := "Ferramenta experimental para gerar resumos de artigos científicos diretamente de arquivos PDF\\. " +
		"Foi desenvolvida para auxiliar no processo de curadoria de newsletters\\.\n\n" +
		"O modelo de linguagem " + esc(provider) + " é utilizado em conjunto com a biblioteca de aprendizado de máquina GROBID, " +
		"responsável pela extração de informações acadêmicas dos artigos\\.\n\n" +
		"Comandos:\n" +
		"/start: iniciar uma nova conversa\n" +
		"/resumo: gerar resumo do artigo em PDF\n" +
		"/suporte: obter ajuda\n\n"
	if contact != "" {
		text += "Reporte um erro:\n" + esc(contact) + "\n\n"
	}
	text += "version: " + esc(version)
	return text
}

func diagnostic(format string, err error) Reply {
	return Plain(fmt.Sprintf(format, markup.Truncate(err.Error(), maxErrorText)))
}

// summaryReply escapes summary under the summary title, shortening the raw
// text first when the escaped message would not fit in one message.
func summaryReply(summary string) Reply {
	body := markup.EscapeMarkdownV2(summary)
	budget := markup.MaxMessageLength - len(msgSummaryTitle)
	if len(body) > budget {
		// Escaping at most doubles the length.
		body = markup.EscapeMarkdownV2(markup.Truncate(summary, budget/2))
	}
	return Markdown(msgSummaryTitle + body)
}
