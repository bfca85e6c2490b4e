package methods

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/GrainArc/GeoEdit/models"
)

func Md5Str(data string) string {

	// 创建一个 MD5 哈希对象
	hash := md5.New()

	// 将数据写入哈希对象
	hash.Write([]byte(data))

	// 获取加密结果（字节数组）
	md5Bytes := hash.Sum(nil)

	// 将加密结果转换为十六进制字符串
	md5String := hex.EncodeToString(md5Bytes)

	// 输出加密结果
	return md5String
}

// FeatureETag 强 ETag，要素内容或版本变化后必然不同
func FeatureETag(row *models.FeatureRow) string {
	digest := Md5Str(fmt.Sprintf("%s/%s/%d/%x/%s", row.Collection, row.ID, row.Version, row.Geom, row.Properties))
	return `"` + digest + `"`
}

// MatchETag 按强比较判断 If-Match 是否命中，支持 "*" 与逗号分隔的多个值
func MatchETag(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}
