package extractor

import (
	"regexp"
	"strings"
)

// ========== 验证码提取 ==========

// codePattern 是一条带说明的提取规则。
type codePattern struct {
	name string
	re   *regexp.Regexp
}

// codePatterns 按优先级排列，前面的规则命中后不再尝试后面的。
//
// 顺序：带标签的英文 / 中文模式优先，其次裸 6 位大写字母数字串，
// 最后裸 4-8 位数字。裸模式召回率高但可能误报长数字（订单号、
// 时间戳），这是沿用既有行为的取舍，调用方应结合邮件来源判断。
var codePatterns = []codePattern{
	{"verification code 标签", regexp.MustCompile(`(?i)verification code[:\s]+([A-Z0-9]{4,8})`)},
	{"code 标签", regexp.MustCompile(`(?i)code[:\s]+([A-Z0-9]{4,8})`)},
	{"验证码标签", regexp.MustCompile(`(?i)验证码[：:\s]+([A-Z0-9]{4,8})`)},
	{"裸 6 位大写串", regexp.MustCompile(`\b([A-Z0-9]{6})\b`)},
	{"裸 4-8 位数字", regexp.MustCompile(`\b([0-9]{4,8})\b`)},
}

// tagRe 去除 HTML 标签。刻意使用与历史行为一致的粗粒度正则
// 而不是完整的 HTML 解析器，否则提取结果会发生漂移。
var tagRe = regexp.MustCompile(`<[^>]*>`)

// spaceRe 折叠连续空白。
var spaceRe = regexp.MustCompile(`\s+`)

// StripTags 把 HTML 标签替换为空格并折叠空白，返回纯文本。
//
// 对已是纯文本的输入是幂等的。
func StripTags(s string) string {
	s = tagRe.ReplaceAllString(s, " ")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Extract 从邮件正文（HTML 或纯文本）中提取验证码。
//
// 纯函数，无 I/O、无状态。未命中时返回空字符串，由调用方
// 决定是继续轮询还是放弃。
func Extract(text string) string {
	if text == "" {
		return ""
	}
	plain := StripTags(text)
	for _, p := range codePatterns {
		if m := p.re.FindStringSubmatch(plain); m != nil {
			return m[1]
		}
	}
	return ""
}
