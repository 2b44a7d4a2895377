package handlers

import (
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/salesdeskhq/salesdesk/internal/common"
)

// Upload stores an attachment and returns the resource URL plus the sender's
// display name. The byte cap is enforced here, before the attachment encoder
// ever sees the resource.
func (h *Handler) Upload(c *gin.Context) {
	_, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.Cfg.MaxUploadBytes)

	file, err := c.FormFile("file")
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10006, "file required or too large")
		return
	}
	if file.Size > h.Cfg.MaxUploadBytes {
		common.Fail(c, http.StatusRequestEntityTooLarge, 10007, "file exceeds upload limit")
		return
	}

	id, err := common.NewULID()
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	name := strings.ToLower(id) + strings.ToLower(path.Ext(file.Filename))
	dst := filepath.Join(h.Cfg.UploadDir, name)
	if err := c.SaveUploadedFile(file, dst); err != nil {
		common.Fail(c, http.StatusInternalServerError, 50004, "failed to store upload")
		return
	}

	common.OK(c, gin.H{
		"url":        h.Cfg.UploadBaseURL + name,
		"name":       file.Filename,
		"senderName": userNameFromContext(c),
	})
}
