// views/helper.go
package views

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"github.com/paulmach/orb/geojson"
)

const (
	ContentTypeGeoJSON = "application/geo+json"
	ContentTypeProblem = "application/problem+json"
	ContentTypeSchema  = "application/schema+json"
	HeaderRequestID    = "X-Request-ID"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// problemDetail 错误响应体
type problemDetail struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// problem 以 application/problem+json 返回错误
func problem(c *gin.Context, status int, detail string) {
	body, _ := json.Marshal(problemDetail{Title: http.StatusText(status), Status: status, Detail: detail})
	c.Data(status, ContentTypeProblem, body)
}

func writeFeature(c *gin.Context, status int, f *geojson.Feature) {
	body, err := f.MarshalJSON()
	if err != nil {
		problem(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.Data(status, ContentTypeGeoJSON, body)
}

// queryInt 读取非负整数查询参数，缺省或非法时返回 def
func queryInt(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil || v < 0 {
		return def
	}
	return v
}
