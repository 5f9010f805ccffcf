package telegram

import "strings"

var markdownEscaper = strings.NewReplacer(
	"\\", "\\\\",
	"*", "\\*",
	"_", "\\_",
	"`", "\\`",
	"[", "\\[",
	"]", "\\]",
)

// escapeMarkdown 转义消息中干扰Markdown解析的字符
func escapeMarkdown(input string) string {
	return markdownEscaper.Replace(input)
}
