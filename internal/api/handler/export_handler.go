package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"studyhall/internal/service"
	"studyhall/pkg/response"
)

// writeFile 以附件形式写出导出文件
func writeFile(c *gin.Context, file *service.ExportFile) {
	encodedFilename := url.QueryEscape(file.Filename)
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodedFilename)
	c.Data(http.StatusOK, file.ContentType, file.Body.Bytes())
}

func handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExportGenerateFail):
		response.Error(c, http.StatusInternalServerError, 19001, "生成导出文件失败")
	default:
		response.InternalError(c)
	}
}
