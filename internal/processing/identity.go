package processing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DocumentID 从规范化后的 (title, authors, date) 推导出稳定的文档标识。
// 纯函数：相同输入产生相同标识，重复入库的同一文档会合并覆盖其分块。
// 为保证跨实现兼容，固定使用 SHA-256 对 "{title}-{authors}-{date}" 取十六进制。
func DocumentID(title, authors, date string) string {
	combined := fmt.Sprintf("%s-%s-%s", title, authors, date)
	sum := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(sum[:])
}
