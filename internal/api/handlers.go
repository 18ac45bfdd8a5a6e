package api

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"language-toolkit/internal/errs"
	"language-toolkit/internal/logger"
	"language-toolkit/internal/tasks"
	"language-toolkit/models"
)

// SubmitRequest is the JSON body of a text submission. File inputs are
// only accepted as multipart uploads.
type SubmitRequest struct {
	SourceLang   string   `json:"source_lang"`
	TargetLangs  []string `json:"target_langs"`
	Text         string   `json:"text"`
	Voice        string   `json:"voice"`
	OutputFormat string   `json:"output_format"`
}

func (r SubmitRequest) params() models.Params {
	return models.Params{
		SourceLang:   r.SourceLang,
		TargetLangs:  r.TargetLangs,
		Text:         r.Text,
		Voice:        r.Voice,
		OutputFormat: r.OutputFormat,
	}
}

// SubmitResponse acknowledges a submission.
type SubmitResponse struct {
	ID     string            `json:"id"`
	Status models.TaskStatus `json:"status"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) languages(c *gin.Context) {
	c.JSON(http.StatusOK, s.router.Languages())
}

func (s *Server) submit(c *gin.Context) {
	kind := models.OperationKind(c.Param("kind"))
	if !kind.Valid() {
		abortWithError(c, errs.E(errs.KindInvalidParams, "submit", fmt.Sprintf("unknown operation %q", kind)))
		return
	}

	var (
		params models.Params
		err    error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		params, err = s.bindUpload(c)
	} else {
		var req SubmitRequest
		if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
			err = errs.Wrap(errs.KindInvalidParams, "submit", bindErr)
		}
		params = req.params()
	}
	if err != nil {
		abortWithError(c, err)
		return
	}

	id, err := s.scheduler.Submit(kind, params)
	if err != nil {
		if params.WorkDir != "" {
			tasks.RemoveWorkDir(params.WorkDir)
		}
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, SubmitResponse{ID: id, Status: models.StatusPending})
}

// bindUpload stores the uploaded files in a fresh task directory and reads
// the remaining parameters from form fields.
func (s *Server) bindUpload(c *gin.Context) (models.Params, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadBytes)
	form, err := c.MultipartForm()
	if err != nil {
		return models.Params{}, errs.Wrap(errs.KindInvalidParams, "upload", err)
	}

	params := models.Params{
		SourceLang:   c.PostForm("source_lang"),
		Text:         c.PostForm("text"),
		Voice:        c.PostForm("voice"),
		OutputFormat: c.PostForm("output_format"),
	}
	for _, v := range form.Value["target_langs"] {
		for _, lang := range strings.Split(v, ",") {
			if lang = strings.TrimSpace(lang); lang != "" {
				params.TargetLangs = append(params.TargetLangs, lang)
			}
		}
	}

	uploads := form.File["files"]
	if len(uploads) == 0 {
		return params, nil
	}
	dir, err := tasks.NewWorkDir(s.opts.WorkRoot)
	if err != nil {
		return models.Params{}, errs.Wrap(errs.KindInternal, "upload", err)
	}
	params.WorkDir = dir

	seen := make(map[string]bool)
	for _, fh := range uploads {
		name := filepath.Base(fh.Filename)
		if name == "." || name == string(filepath.Separator) || seen[name] {
			tasks.RemoveWorkDir(dir)
			return models.Params{}, errs.E(errs.KindInvalidParams, "upload", fmt.Sprintf("invalid or duplicate file name %q", fh.Filename))
		}
		seen[name] = true

		dst := filepath.Join(dir, "input", name)
		if err := c.SaveUploadedFile(fh, dst); err != nil {
			tasks.RemoveWorkDir(dir)
			return models.Params{}, errs.Wrap(errs.KindInternal, "upload", err)
		}
		params.Files = append(params.Files, dst)
	}
	logger.Debug("Stored %d uploads in %s", len(params.Files), dir)
	return params, nil
}

func (s *Server) listTasks(c *gin.Context) {
	c.JSON(http.StatusOK, s.query.ListTasks())
}

func (s *Server) getTask(c *gin.Context) {
	task, err := s.query.GetStatus(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) getResult(c *gin.Context) {
	var index *int
	if raw := c.Param("index"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			abortWithError(c, errs.E(errs.KindInvalidParams, "result", fmt.Sprintf("file index %q is not a number", raw)))
			return
		}
		index = &n
	}

	art, err := s.query.GetResult(c.Param("id"), index)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if art.Path != "" {
		c.Header("Content-Type", art.ContentType)
		c.FileAttachment(art.Path, art.Name)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.Name))
	c.Data(http.StatusOK, art.ContentType, art.Data)
}

func (s *Server) cancelTask(c *gin.Context) {
	id := c.Param("id")
	if err := s.scheduler.Cancel(id); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": id, "canceled": true})
}

func (s *Server) deleteTask(c *gin.Context) {
	id := c.Param("id")
	if err := s.query.Cleanup(id); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "deleted": true})
}
