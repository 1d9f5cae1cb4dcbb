/*
Copyright 2017 Google Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package parser

import "strings"

const eofChar = 0x100

type TokenType int

const (
	TokenEOF TokenType = iota
	TokenIdent
	TokenQuotedIdent
	TokenString
	TokenNumber
	TokenLineComment
	TokenBlockComment
	TokenPunct
)

// Token is a lexical unit together with its byte offsets in the scanned text.
type Token struct {
	Type  TokenType
	Value string
	Pos   int
	End   int
}

// IsKeyword reports whether the token is the bare word keyword, case-insensitively.
func (t Token) IsKeyword(keyword string) bool {
	return t.Type == TokenIdent && strings.EqualFold(t.Value, keyword)
}

// IsComment reports whether the token is a line or block comment.
func (t Token) IsComment() bool {
	return t.Type == TokenLineComment || t.Type == TokenBlockComment
}

// Tokenizer is the struct used to generate SQL tokens.
// It understands just enough of the Xugu lexical rules to find statement
// boundaries, keywords and comments without a grammar.
type Tokenizer struct {
	buf string
	pos int
}

// NewStringTokenizer creates a new Tokenizer for the sql string.
func NewStringTokenizer(sql string) *Tokenizer {
	return &Tokenizer{buf: sql}
}

// Position returns the byte offset of the next unread character.
func (tkn *Tokenizer) Position() int {
	return tkn.pos
}

// Scan returns the next token. Comments are returned as tokens; whitespace is not.
func (tkn *Tokenizer) Scan() Token {
	tkn.skipBlank()
	start := tkn.pos
	switch ch := tkn.peek(0); {
	case ch == eofChar:
		return Token{Type: TokenEOF, Pos: start, End: start}
	case isLetter(ch):
		return tkn.scanIdentifier()
	case isDigit(ch):
		return tkn.scanNumber()
	case ch == '"':
		return tkn.scanQuoted('"', TokenQuotedIdent)
	case ch == '\'':
		return tkn.scanQuoted('\'', TokenString)
	case ch == '-' && tkn.peek(1) == '-':
		return tkn.scanLineComment()
	case ch == '/' && tkn.peek(1) == '*':
		return tkn.scanBlockComment()
	default:
		tkn.pos++
		return Token{Type: TokenPunct, Value: tkn.buf[start:tkn.pos], Pos: start, End: tkn.pos}
	}
}

// ScanSignificant returns the next token that is not a comment.
func (tkn *Tokenizer) ScanSignificant() Token {
	for {
		tok := tkn.Scan()
		if !tok.IsComment() {
			return tok
		}
	}
}

// LeadingTokens returns up to n leading tokens of sql, skipping comments.
func LeadingTokens(sql string, n int) []Token {
	tkn := NewStringTokenizer(sql)
	var tokens []Token
	for len(tokens) < n {
		tok := tkn.ScanSignificant()
		if tok.Type == TokenEOF {
			break
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

func (tkn *Tokenizer) peek(offset int) uint16 {
	if tkn.pos+offset >= len(tkn.buf) {
		return eofChar
	}
	return uint16(tkn.buf[tkn.pos+offset])
}

func (tkn *Tokenizer) skipBlank() {
	for {
		ch := tkn.peek(0)
		if ch != ' ' && ch != '\n' && ch != '\r' && ch != '\t' && ch != '\f' {
			return
		}
		tkn.pos++
	}
}

func (tkn *Tokenizer) scanIdentifier() Token {
	start := tkn.pos
	for ch := tkn.peek(0); isLetter(ch) || isDigit(ch); ch = tkn.peek(0) {
		tkn.pos++
	}
	return Token{Type: TokenIdent, Value: tkn.buf[start:tkn.pos], Pos: start, End: tkn.pos}
}

func (tkn *Tokenizer) scanNumber() Token {
	start := tkn.pos
	for ch := tkn.peek(0); isDigit(ch) || ch == '.'; ch = tkn.peek(0) {
		tkn.pos++
	}
	return Token{Type: TokenNumber, Value: tkn.buf[start:tkn.pos], Pos: start, End: tkn.pos}
}

// scanQuoted consumes a delimited literal. A doubled delimiter is an escaped delimiter.
// The returned value has the delimiters removed and escapes resolved.
func (tkn *Tokenizer) scanQuoted(delim uint16, typ TokenType) Token {
	start := tkn.pos
	tkn.pos++
	var value strings.Builder
	for {
		ch := tkn.peek(0)
		if ch == eofChar {
			break
		}
		tkn.pos++
		if ch == delim {
			if tkn.peek(0) == delim {
				tkn.pos++
				value.WriteByte(byte(delim))
				continue
			}
			break
		}
		value.WriteByte(byte(ch))
	}
	return Token{Type: typ, Value: value.String(), Pos: start, End: tkn.pos}
}

func (tkn *Tokenizer) scanLineComment() Token {
	start := tkn.pos
	for ch := tkn.peek(0); ch != eofChar && ch != '\n'; ch = tkn.peek(0) {
		tkn.pos++
	}
	return Token{Type: TokenLineComment, Value: tkn.buf[start:tkn.pos], Pos: start, End: tkn.pos}
}

func (tkn *Tokenizer) scanBlockComment() Token {
	start := tkn.pos
	end := strings.Index(tkn.buf[start+2:], "*/")
	if end < 0 {
		tkn.pos = len(tkn.buf)
	} else {
		tkn.pos = start + 2 + end + 2
	}
	return Token{Type: TokenBlockComment, Value: tkn.buf[start:tkn.pos], Pos: start, End: tkn.pos}
}

// Multi-byte UTF-8 sequences count as letters so that Chinese identifiers
// scan as a single word.
func isLetter(ch uint16) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_' || ch == '$' || ch == '#' || (ch >= 0x80 && ch != eofChar)
}

func isDigit(ch uint16) bool {
	return '0' <= ch && ch <= '9'
}
