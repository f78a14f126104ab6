package generate

import (
	"fmt"
	"strings"

	"github.com/dgallion1/docforge/internal/doctree"
)

const sectionSystemPrompt = `你是一名专业的公文写作助手。请根据给定的章节要求、文档大纲和参考材料撰写该章节的正文。

规则：
- 只输出章节正文，不要重复章节标题，不要额外解释
- 段落之间用一个空行分隔
- 内容必须以参考材料为依据，不要编造数据
- 参考材料不足时，按照章节要求写出通用但得体的内容`

const batchSystemPrompt = `你是一名专业的公文写作助手。请按顺序为下面列出的每个章节撰写正文。

规则：
- 每个章节以一行 "### 章节标题" 开头，标题必须与列表中的标题完全一致
- 按列表顺序输出全部章节，不要合并或跳过
- 段落之间用一个空行分隔，不要额外解释`

const polishSystemPrompt = "你是专业的文字处理助手，擅长结构化文本优化。"

const polishPrompt = `请润色以下文字，使其更通顺正式，并适当分段和分点，直接返回处理后的文字，不要额外解释。
文字：%s`

// sectionPrompt leads with the section's own title and requirements so the
// cache fingerprint (length plus leading runes) differs per section.
func sectionPrompt(s *doctree.Section, outline, excerpt, tone string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "章节：%s\n", s.Title)
	writeSectionRules(&sb, s)
	if tone != "" {
		fmt.Fprintf(&sb, "语气：%s\n", tone)
	}
	if outline != "" {
		sb.WriteString("\n文档大纲：\n")
		sb.WriteString(outline)
		sb.WriteString("\n")
	}
	if excerpt != "" {
		sb.WriteString("\n参考材料：\n---\n")
		sb.WriteString(excerpt)
		sb.WriteString("\n---\n")
	}
	return sb.String()
}

func writeSectionRules(sb *strings.Builder, s *doctree.Section) {
	if s.Requirements != "" {
		fmt.Fprintf(sb, "要求：%s\n", s.Requirements)
	}
	if s.WordCount > 0 {
		fmt.Fprintf(sb, "字数：约 %d 字\n", s.WordCount)
	}
	switch s.Type {
	case doctree.SectionList:
		sb.WriteString("格式：分点列出，每点一行，以 \"1.\"、\"2.\" 编号\n")
		if len(s.BulletPoints) > 0 {
			fmt.Fprintf(sb, "要点：%s\n", strings.Join(s.BulletPoints, "；"))
		}
	case doctree.SectionTable:
		sb.WriteString("格式：先用一段文字概述，再分点列出表格各行的内容\n")
	}
	if s.Placeholder != "" {
		fmt.Fprintf(sb, "参考写法：%s\n", s.Placeholder)
	}
}

func batchPrompt(sections []*doctree.Section, outline, excerpt, tone string) string {
	var sb strings.Builder
	sb.WriteString("章节列表：\n")
	for i, s := range sections {
		fmt.Fprintf(&sb, "\n%d. %s\n", i+1, s.Title)
		writeSectionRules(&sb, s)
	}
	if tone != "" {
		fmt.Fprintf(&sb, "\n语气：%s\n", tone)
	}
	if outline != "" {
		sb.WriteString("\n文档大纲：\n")
		sb.WriteString(outline)
		sb.WriteString("\n")
	}
	if excerpt != "" {
		sb.WriteString("\n参考材料：\n---\n")
		sb.WriteString(excerpt)
		sb.WriteString("\n---\n")
	}
	return sb.String()
}
