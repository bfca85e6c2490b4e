package methods

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/mozillazg/go-pinyin"
)

func IsStringInSlice(s string, slice []string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}

var leadingNumbers = regexp.MustCompile(`^(\d+)(.*)$`)

func moveLeadingNumbersToEnd(s string) string {
	// match[1] 是前导数字，match[2] 是剩余部分
	match := leadingNumbers.FindStringSubmatch(s)
	if len(match) == 3 {
		return match[2] + match[1]
	}
	return s
}

// 匹配中文、英文、数字和下划线之外的字符
var illegalChars = regexp.MustCompile(`[^\p{Han}\p{Latin}\p{N}_]`)

func filterString(str string) string {
	return illegalChars.ReplaceAllString(str, "")
}

// ConvertToInitials  将中文字符串转换为拼音首字母拼接字符串
func ConvertToInitials(hanzi string) string {
	hanzi = filterString(hanzi)
	a := pinyin.NewArgs()
	a.Style = pinyin.FirstLetter // 设置拼音风格为首字母
	var b strings.Builder
	for _, runeValue := range hanzi {
		if unicode.Is(unicode.Han, runeValue) {
			// 如果是汉字，则获取拼音首字母
			if py := pinyin.SinglePinyin(runeValue, a); len(py) > 0 {
				b.WriteString(py[0])
			}
		} else {
			b.WriteRune(runeValue)
		}
	}
	return strings.ToLower(moveLeadingNumbersToEnd(b.String()))
}

// CollectionSlug 由集合标题生成 id，如 "道路2023" -> "dl2023"
func CollectionSlug(title string) string {
	slug := ConvertToInitials(title)
	if slug == "" {
		return "collection"
	}
	return slug
}
