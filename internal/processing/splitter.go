package processing

import (
	"regexp"
	"strings"
)

// DefaultOverlap 是滑动窗口切分时相邻分块的重叠字符数。
const DefaultOverlap = 20

var reParagraphSep = regexp.MustCompile(`\n\s*\n`)

// SplitText 将文本切分为长度不超过 maxLength 的有序分块。
// 优先按段落等结构边界切分并贪心合并，单个段落超限时退化为
// 带重叠的滑动窗口切分。输出有限且保持原文顺序。
func SplitText(content string, maxLength, overlap int) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	if maxLength <= 0 {
		return []string{content}
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, block := range reParagraphSep.Split(content, -1) {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}

		// 段落自身超限：先落盘当前缓冲，再对该段落做窗口切分
		if len([]rune(block)) > maxLength {
			flush()
			chunks = append(chunks, splitWindow(block, maxLength, overlap)...)
			continue
		}

		// 贪心合并：能放进当前分块就追加，否则另起一块
		if current.Len() > 0 && len([]rune(current.String()))+len([]rune(block))+2 > maxLength {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(block)
	}
	flush()

	return chunks
}

// splitWindow 将长文本按指定大小和重叠进行滑动窗口切分。
func splitWindow(text string, chunkSize, chunkOverlap int) []string {
	if chunkSize <= chunkOverlap {
		return simpleSplit(text, chunkSize)
	}

	var chunks []string
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := chunkSize - chunkOverlap
	for i := 0; i < len(runes); i += step {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

func simpleSplit(text string, chunkSize int) []string {
	var chunks []string
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	for i := 0; i < len(runes); i += chunkSize {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
