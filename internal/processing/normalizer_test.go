package processing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"qgr-retrieval-go/internal/model"
)

func TestCleanDescription(t *testing.T) {
	t.Run("Should return empty string unchanged", func(t *testing.T) {
		assert.Equal(t, "", CleanDescription(""))
	})
	t.Run("Should strip URLs", func(t *testing.T) {
		assert.Equal(t, "check now", CleanDescription("check https://example.com/page now"))
		assert.Equal(t, "see ", CleanDescription("see www.example.com"))
	})
	t.Run("Should strip timestamps", func(t *testing.T) {
		assert.Equal(t, "meeting at today", CleanDescription("meeting at 12:30 today"))
		assert.Equal(t, "ends ", CleanDescription("ends 01:02:03"))
	})
	t.Run("Should strip tokens of 30 or more characters", func(t *testing.T) {
		long := strings.Repeat("x", 30)
		assert.Equal(t, "a b", CleanDescription("a "+long+" b"))
	})
	t.Run("Should keep tokens shorter than 30 characters", func(t *testing.T) {
		token := strings.Repeat("x", 29)
		assert.Equal(t, "a "+token+" b", CleanDescription("a "+token+" b"))
	})
	t.Run("Should strip special characters but keep dots and newlines", func(t *testing.T) {
		assert.Equal(t, "hello world.\nnext", CleanDescription("hello, world!.\nnext"))
	})
	t.Run("Should collapse runs of newlines and spaces", func(t *testing.T) {
		assert.Equal(t, "a\nb c", CleanDescription("a\n\n\nb   c"))
	})
}

func TestCleanLatex(t *testing.T) {
	t.Run("Should keep markup syntax", func(t *testing.T) {
		in := `\section{Intro} $x^2$ [1]`
		assert.Equal(t, in, CleanLatex(in))
	})
	t.Run("Should strip non-ASCII characters", func(t *testing.T) {
		assert.Equal(t, "abc ", CleanLatex("abc 你好"))
	})
	t.Run("Should strip bullet symbols", func(t *testing.T) {
		assert.Equal(t, " item", CleanLatex("• item"))
	})
	t.Run("Should collapse runs of spaces", func(t *testing.T) {
		assert.Equal(t, "a b", CleanLatex("a    b"))
	})
}

func TestNormalizeField(t *testing.T) {
	t.Run("Should keep value within ceiling verbatim", func(t *testing.T) {
		dirty := "see https://example.com at 12:30!"
		assert.Equal(t, dirty, NormalizeField(dirty, 100))
	})
	t.Run("Should clean then truncate when over ceiling", func(t *testing.T) {
		// 29 字符的 token 不会被整体删除，清洗后再截断到上限
		in := strings.Repeat(strings.Repeat("a", 29)+" ", 20)
		out := NormalizeField(in, 50)
		assert.Len(t, out, 50)
	})
	t.Run("Should collapse a single oversized token to empty", func(t *testing.T) {
		// 清洗把整个超长 token 删掉，截断后剩空字符串
		assert.Equal(t, "", NormalizeField(strings.Repeat("A", 1000), CeilingTitle))
	})
}

func TestCleanContent(t *testing.T) {
	t.Run("Should clean notes aggressively", func(t *testing.T) {
		out := CleanContent("note https://example.com body", model.PartitionNotes)
		assert.NotContains(t, out, "example.com")
	})
	t.Run("Should keep URLs for document partitions", func(t *testing.T) {
		out := CleanContent("cite https://example.com here", model.PartitionPapers)
		assert.Contains(t, out, "https://example.com")
	})
}

func TestTruncate(t *testing.T) {
	t.Run("Should return short strings unchanged", func(t *testing.T) {
		assert.Equal(t, "abc", Truncate("abc", 10))
	})
	t.Run("Should truncate by runes not bytes", func(t *testing.T) {
		assert.Equal(t, "日本語テ", Truncate("日本語テスト", 4))
	})
	t.Run("Should truncate ASCII to limit", func(t *testing.T) {
		assert.Equal(t, "abcde", Truncate("abcdefgh", 5))
	})
}
