package parser

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Lexer maps the raw string tokens out for our AST definitions.
// Basic whitespace elision is enough for our grammars.
var Lexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "UUID", Pattern: `[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`},
	{Name: "Ident", Pattern: `[a-zA-Z_]\w*`},
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Punct", Pattern: `[/@]`},
	{Name: "Whitespace", Pattern: `[ \t]+`},
})

// BuildChat creates the parser for the leading command token of a chat message.
func BuildChat() *participle.Parser[ChatCommand] {
	return participle.MustBuild[ChatCommand](
		participle.Lexer(Lexer),
		participle.Elide("Whitespace"),
		participle.CaseInsensitive("Ident"),
	)
}

// BuildCallback creates the parser for inline button payloads.
func BuildCallback() *participle.Parser[Callback] {
	return participle.MustBuild[Callback](
		participle.Lexer(Lexer),
		participle.Elide("Whitespace"),
	)
}

var (
	chatParser     = BuildChat()
	callbackParser = BuildCallback()
)
