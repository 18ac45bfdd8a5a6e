package tasks

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"language-toolkit/internal/errs"
	"language-toolkit/internal/logger"
	"language-toolkit/models"
)

// Artifact is a downloadable result: either a file on disk (Path) or an
// archive built in memory (Data).
type Artifact struct {
	Name        string
	ContentType string
	Path        string
	Data        []byte
}

// Query is the read side used by clients. It never mutates task state
// except through Cleanup.
type Query struct {
	registry *Registry
}

func NewQuery(registry *Registry) *Query {
	return &Query{registry: registry}
}

// GetStatus returns a task snapshot. Failed tasks are returned normally.
func (q *Query) GetStatus(id string) (*models.Task, error) {
	return q.registry.Get(id)
}

// ListTasks returns summaries, newest first.
func (q *Query) ListTasks() []models.Summary {
	return q.registry.List()
}

// GetResult returns one result file, or with a nil index and several files
// a zip archive of all of them.
func (q *Query) GetResult(id string, index *int) (*Artifact, error) {
	task, err := q.registry.Get(id)
	if err != nil {
		return nil, err
	}
	if task.Status != models.StatusCompleted {
		return nil, errs.E(errs.KindNotReady, "result", fmt.Sprintf("task %s is %s", id, task.Status))
	}

	files := task.ResultFiles
	if index != nil {
		if *index < 0 || *index >= len(files) {
			return nil, errs.E(errs.KindIndexOutOfRange, "result",
				fmt.Sprintf("file index %d out of range (task has %d files)", *index, len(files)))
		}
		return fileArtifact(files[*index])
	}
	if len(files) == 1 {
		return fileArtifact(files[0])
	}

	data, err := zipFiles(files)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "result", err)
	}
	return &Artifact{
		Name:        fmt.Sprintf("results_%s.zip", id),
		ContentType: ContentType(".zip"),
		Data:        data,
	}, nil
}

func fileArtifact(path string) (*Artifact, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errs.Wrap(errs.KindInternal, "result", fmt.Errorf("result file unavailable: %w", err))
	}
	return &Artifact{
		Name:        filepath.Base(path),
		ContentType: ContentType(filepath.Ext(path)),
		Path:        path,
	}, nil
}

// zipFiles archives files by base name; clashing names get a numeric suffix.
func zipFiles(files []string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	used := make(map[string]bool)

	for _, path := range files {
		name := filepath.Base(path)
		if used[name] {
			ext := filepath.Ext(name)
			stem := strings.TrimSuffix(name, ext)
			for n := 2; used[name]; n++ {
				name = fmt.Sprintf("%s_%d%s", stem, n, ext)
			}
		}
		used[name] = true

		if err := addZipFile(zw, path, name); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func addZipFile(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

// Cleanup deletes a finished task and its working directory. Pending and
// running tasks are refused and keep running.
func (q *Query) Cleanup(id string) error {
	task, err := q.registry.Delete(id)
	if err != nil {
		return err
	}
	if err := RemoveWorkDir(task.Params.WorkDir); err != nil {
		logger.Warn("Task %s: %v", id, err)
	}
	logger.Info("Task %s cleaned up", id)
	return nil
}

var contentTypes = map[string]string{
	".pdf":  "application/pdf",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".odt":  "application/vnd.oasis.opendocument.text",
	".txt":  "text/plain; charset=utf-8",
	".md":   "text/markdown; charset=utf-8",
	".srt":  "application/x-subrip",
	".html": "text/html; charset=utf-8",
	".mp3":  "audio/mpeg",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".zip":  "application/zip",
}

// ContentType maps a file extension to a MIME type.
func ContentType(ext string) string {
	if ct, ok := contentTypes[strings.ToLower(ext)]; ok {
		return ct
	}
	return "application/octet-stream"
}
