// Package parser turns /poll commands into questions and options.
package parser

import (
	"strings"
	"unicode"
	"unicode/utf8"

	pollmodels "github.com/groupchat/pollbot/pkg/db/models/polls"
)

// Command is the trigger prefix of every poll command.
const Command = "/poll"

// IsDelimiter reports whether r opens or closes a quoted token.
// Typographic quotes are accepted because mobile keyboards substitute them.
func IsDelimiter(r rune) bool {
	return r == '"' || r == '“' || r == '”'
}

// HasCommandPrefix reports whether text starts with /poll, ignoring case and leading whitespace.
func HasCommandPrefix(text string) bool {
	text = strings.TrimLeftFunc(text, unicode.IsSpace)
	return len(text) >= len(Command) && strings.EqualFold(text[:len(Command)], Command)
}

// token is a quoted value with the byte offset of its first character in the raw text.
type token struct {
	value string
	start int
}

// Parse reads `/poll "Question" "Option 1" "Option 2"`.
// It fails when the prefix is missing, a quote is left open, text appears outside
// quotes or no question is given. Mentions are realigned to the question body;
// mentions outside the question are dropped.
func Parse(text string, mentions []pollmodels.Mention) (*pollmodels.ParsedPoll, bool) {
	lead := len(text) - len(strings.TrimLeftFunc(text, unicode.IsSpace))
	if !HasCommandPrefix(text) {
		return nil, false
	}

	tokens, ok := tokenize(text, lead+len(Command))
	if !ok || len(tokens) == 0 {
		return nil, false
	}

	question := tokens[0]
	if question.value == "" {
		return nil, false
	}

	options := make([]string, 0, len(tokens)-1)
	for _, t := range tokens[1:] {
		options = append(options, t.value)
	}

	return &pollmodels.ParsedPoll{
		Question: pollmodels.Text{
			Body:     question.value,
			Mentions: realign(text, question, mentions),
		},
		Options: options,
	}, true
}

func tokenize(text string, pos int) ([]token, bool) {
	// the command must be followed by whitespace or a quote
	if pos < len(text) {
		r, _ := utf8.DecodeRuneInString(text[pos:])
		if !unicode.IsSpace(r) && !IsDelimiter(r) {
			return nil, false
		}
	}

	var tokens []token
	for pos < len(text) {
		r, size := utf8.DecodeRuneInString(text[pos:])
		switch {
		case unicode.IsSpace(r):
			pos += size
		case IsDelimiter(r):
			pos += size
			end := strings.IndexFunc(text[pos:], IsDelimiter)
			if end < 0 {
				return nil, false
			}
			raw := text[pos : pos+end]
			trimmed := strings.TrimLeftFunc(raw, unicode.IsSpace)
			tokens = append(tokens, token{
				value: strings.TrimRightFunc(trimmed, unicode.IsSpace),
				start: pos + len(raw) - len(trimmed),
			})
			_, closeSize := utf8.DecodeRuneInString(text[pos+end:])
			pos += end + closeSize
		default:
			return nil, false
		}
	}
	return tokens, true
}

// realign keeps the mentions that fall inside the question and makes them relative to it.
// Offsets are UTF-16 code units of the raw text.
func realign(text string, question token, mentions []pollmodels.Mention) []pollmodels.Mention {
	if len(mentions) == 0 {
		return nil
	}
	start := pollmodels.TextLength(text[:question.start])
	end := start + pollmodels.TextLength(question.value)

	var out []pollmodels.Mention
	for _, m := range mentions {
		if m.Offset < start || m.Length < 0 || m.Offset+m.Length > end {
			continue
		}
		out = append(out, m.Shift(-start))
	}
	return out
}
