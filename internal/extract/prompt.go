package extract

import (
	"fmt"
	"strings"
)

const systemPrompt = "你是专业的信息提取助手，只从原文中摘取信息，绝对禁止编造。"

const extractionPrompt = `请从下面的文本中提取以下字段的内容，返回一个 JSON 对象，键为字段名，值为字符串。

字段：%s

规则：
- 只能使用原文中出现的内容，禁止编造、推测或补充
- 原文中没有对应内容的字段，值为空字符串 ""
- 尽量保留原文措辞，可以适当删减
- 只输出 JSON 对象，不要输出其他文字

文本：
---
%s
---`

// BuildPrompt creates the user prompt asking for fields out of text.
func BuildPrompt(fields []string, text string) string {
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = fmt.Sprintf("%q", f)
	}
	return fmt.Sprintf(extractionPrompt, strings.Join(quoted, "、"), text)
}
