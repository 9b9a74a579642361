// Package processing 实现了文档入库前的文本清洗、分块与标识生成。
package processing

import (
	"regexp"

	"qgr-retrieval-go/internal/model"
)

// 各元数据字段入库前的长度上限，与后端 schema 对齐，属于硬约束。
const (
	CeilingTitle    = 900
	CeilingAbstract = 4000
	CeilingKeywords = 1004
	CeilingAuthors  = 1000
	CeilingDate     = 250
	CeilingCategory = 250
)

var (
	reURL        = regexp.MustCompile(`http\S+|www\.\S+`)
	reTimestamp  = regexp.MustCompile(`\d+:\d+:\d+|\d+:\d+`)
	reLongToken  = regexp.MustCompile(`\S{30,}`)
	reSpecial    = regexp.MustCompile(`[^a-zA-Z0-9 \n.]`)
	reNewlines   = regexp.MustCompile(`\n+`)
	reSpaces     = regexp.MustCompile(` +`)
	reCJKSymbols = regexp.MustCompile(`[\x{2022}-\x{5424}]`)
	reNonASCII   = regexp.MustCompile(`[^\x00-\x7F]+`)
)

// CleanDescription 对口语化文本做激进清洗：
// 去除 URL、时间戳、超长 token 与特殊字符，折叠多余的换行和空格。
func CleanDescription(s string) string {
	if s == "" {
		return ""
	}
	s = reURL.ReplaceAllString(s, "")
	s = reTimestamp.ReplaceAllString(s, "")
	s = reLongToken.ReplaceAllString(s, "")
	s = reSpecial.ReplaceAllString(s, "")
	s = reNewlines.ReplaceAllString(s, "\n")
	s = reSpaces.ReplaceAllString(s, " ")
	return s
}

// CleanLatex 对结构化文档做保守清洗：仅去除非 ASCII 字符与符号区段，
// 保留标记语法以便下游渲染。
func CleanLatex(s string) string {
	s = reCJKSymbols.ReplaceAllString(s, "")
	s = reNonASCII.ReplaceAllString(s, "")
	s = reSpaces.ReplaceAllString(s, " ")
	return s
}

// NormalizeField 把元数据字段约束到其长度上限：
// 超限时先做清洗再硬截断，未超限时原样返回。
func NormalizeField(value string, ceiling int) string {
	if len(value) <= ceiling {
		return value
	}
	value = CleanDescription(value)
	return Truncate(value, ceiling)
}

// CleanContent 按分区选择内容清洗模式：notes 分区是口语化文本，
// 使用激进清洗以提升向量质量；其余分区保留文档标记。
func CleanContent(text string, partition model.Partition) string {
	if partition == model.PartitionNotes {
		return CleanDescription(text)
	}
	return CleanLatex(text)
}

// Truncate 按字符（rune）截断字符串，避免切断多字节字符。
func Truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
