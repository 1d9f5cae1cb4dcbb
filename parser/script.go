package parser

import (
	"strings"
	"unicode"
)

var blockKinds = []string{"PROCEDURE", "FUNCTION", "PACKAGE", "TYPE", "TRIGGER"}

// SplitScript splits a script into statements.
//
// Plain statements end at a ';' outside of literals and comments. Procedural
// sources (CREATE [OR REPLACE] PROCEDURE/FUNCTION/PACKAGE/TYPE/TRIGGER and
// anonymous DECLARE/BEGIN blocks) contain semicolons of their own, so they run
// until a line holding only "/". Leading comments of a statement are dropped.
func SplitScript(script string) []string {
	var result []string
	tkn := NewStringTokenizer(script)

	start := -1
	block := false
	flush := func(end int) {
		if start >= 0 {
			if stmt := strings.TrimFunc(script[start:end], unicode.IsSpace); stmt != "" {
				result = append(result, stmt)
			}
		}
		start = -1
		block = false
	}

	for {
		tok := tkn.Scan()
		if tok.Type == TokenEOF {
			flush(len(script))
			return result
		}
		if tok.IsComment() && start < 0 {
			continue
		}
		if tok.Type == TokenPunct && tok.Value == "/" && aloneOnLine(script, tok) {
			flush(tok.Pos)
			continue
		}
		if start < 0 {
			start = tok.Pos
			block = isBlockStart(script[tok.Pos:])
		}
		if !block && tok.Type == TokenPunct && tok.Value == ";" {
			flush(tok.Pos)
		}
	}
}

func isBlockStart(sql string) bool {
	tokens := LeadingTokens(sql, 4)
	if len(tokens) == 0 {
		return false
	}
	if tokens[0].IsKeyword("DECLARE") || tokens[0].IsKeyword("BEGIN") {
		return true
	}
	if !tokens[0].IsKeyword("CREATE") {
		return false
	}
	for _, tok := range tokens[1:] {
		if tok.IsKeyword("OR") || tok.IsKeyword("REPLACE") {
			continue
		}
		for _, kind := range blockKinds {
			if tok.IsKeyword(kind) {
				return true
			}
		}
		return false
	}
	return false
}

func aloneOnLine(text string, tok Token) bool {
	lineStart := strings.LastIndexByte(text[:tok.Pos], '\n') + 1
	if strings.TrimSpace(text[lineStart:tok.Pos]) != "" {
		return false
	}
	rest := text[tok.End:]
	if lineEnd := strings.IndexByte(rest, '\n'); lineEnd >= 0 {
		rest = rest[:lineEnd]
	}
	return strings.TrimSpace(rest) == ""
}
