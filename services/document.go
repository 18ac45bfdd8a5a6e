package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"language-toolkit/internal/config"
	"language-toolkit/internal/errs"
	"language-toolkit/internal/logger"
	"language-toolkit/internal/subtitle"
	"language-toolkit/internal/text"
	"language-toolkit/internal/worker"
)

// TextFunc translates one piece of text.
type TextFunc func(ctx context.Context, text string) (string, error)

// DocumentExtensions lists the formats translate-document accepts.
var DocumentExtensions = []string{".txt", ".md", ".srt", ".pptx"}

// SupportedDocument reports whether path has a translatable extension.
func SupportedDocument(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range DocumentExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// TranslateDocument translates inPath into outPath, dispatching on the file
// extension. Segments are translated concurrently; onProgress receives
// segment counts.
func TranslateDocument(ctx context.Context, inPath, outPath string, translate TextFunc, onProgress worker.ProgressFunc) error {
	switch strings.ToLower(filepath.Ext(inPath)) {
	case ".txt", ".md":
		return translatePlainFile(ctx, inPath, outPath, translate, onProgress)
	case ".srt":
		return translateSubtitleFile(ctx, inPath, outPath, translate, onProgress)
	case ".pptx":
		return translatePresentation(ctx, inPath, outPath, translate, onProgress)
	}
	return errs.E(errs.KindInvalidParams, "translate-document",
		fmt.Sprintf("unsupported document type %q", filepath.Ext(inPath)))
}

// TranslateText splits long text into chunks below the provider request
// limit and translates them concurrently, preserving order.
func TranslateText(ctx context.Context, input string, translate TextFunc, onProgress worker.ProgressFunc) (string, error) {
	chunks := text.ChunkText(input, config.MaxChunkChars)
	if len(chunks) == 0 {
		return "", nil
	}
	if len(chunks) == 1 {
		out, err := translate(ctx, chunks[0])
		if onProgress != nil {
			onProgress(1, 1)
		}
		return out, err
	}

	out, err := translateAll(ctx, chunks, translate, onProgress)
	if err != nil {
		return "", err
	}
	return strings.Join(out, text.ChunkSeparator), nil
}

func translateAll(ctx context.Context, segments []string, translate TextFunc, onProgress worker.ProgressFunc) ([]string, error) {
	workers := config.DynamicWorkerCount("translation-api")
	return worker.Process(ctx, segments, workers, func(ctx context.Context, job worker.Job[string]) (string, error) {
		return translate(ctx, job.Data)
	}, onProgress)
}

func translatePlainFile(ctx context.Context, inPath, outPath string, translate TextFunc, onProgress worker.ProgressFunc) error {
	data, err := os.ReadFile(inPath)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "read document", err)
	}
	out, err := TranslateText(ctx, string(data), translate, onProgress)
	if err != nil {
		return err
	}
	return writeFile(outPath, []byte(out))
}

func translateSubtitleFile(ctx context.Context, inPath, outPath string, translate TextFunc, onProgress worker.ProgressFunc) error {
	f, err := os.Open(inPath)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "read subtitles", err)
	}
	cues, err := subtitle.Parse(f)
	f.Close()
	if err != nil {
		return errs.Wrap(errs.KindInvalidParams, "parse subtitles", err)
	}
	if len(cues) == 0 {
		return errs.E(errs.KindInvalidParams, "parse subtitles", filepath.Base(inPath)+" contains no cues")
	}

	texts, err := translateAll(ctx, cues.Texts(), translate, onProgress)
	if err != nil {
		return err
	}
	translated, err := cues.WithTexts(texts)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "translate subtitles", err)
	}
	return writeFile(outPath, []byte(subtitle.Format(translated)))
}

// textRunRegex matches a DrawingML text run: <a:t>...</a:t>.
var textRunRegex = regexp.MustCompile(`(<a:t(?:\s[^>]*)?>)([^<]*)(</a:t>)`)

// slideEntryRegex matches slide and notes parts inside a .pptx package.
var slideEntryRegex = regexp.MustCompile(`^ppt/(slides|notesSlides)/[^/]+\.xml$`)

// translatePresentation rewrites the text runs of every slide. Runs are
// deduplicated so repeated labels are translated once. Layout, images and
// all other package parts are copied unchanged.
func translatePresentation(ctx context.Context, inPath, outPath string, translate TextFunc, onProgress worker.ProgressFunc) error {
	zr, err := zip.OpenReader(inPath)
	if err != nil {
		return errs.Wrap(errs.KindInvalidParams, "open presentation", err)
	}
	defer zr.Close()

	parts := make(map[string][]byte)
	unique := make(map[string]int)
	var runs []string

	for _, f := range zr.File {
		if !slideEntryRegex.MatchString(f.Name) {
			continue
		}
		data, err := readZipEntry(f)
		if err != nil {
			return errs.Wrap(errs.KindInvalidParams, "read slide", err)
		}
		parts[f.Name] = data
		for _, m := range textRunRegex.FindAllSubmatch(data, -1) {
			s := html.UnescapeString(string(m[2]))
			if strings.TrimSpace(s) == "" {
				continue
			}
			if _, seen := unique[s]; !seen {
				unique[s] = len(runs)
				runs = append(runs, s)
			}
		}
	}
	if len(parts) == 0 {
		return errs.E(errs.KindInvalidParams, "open presentation", filepath.Base(inPath)+" has no slides")
	}
	logger.Debug("Presentation %s: %d slide parts, %d unique text runs", filepath.Base(inPath), len(parts), len(runs))

	translated, err := translateAll(ctx, runs, translate, onProgress)
	if err != nil {
		return err
	}

	for name, data := range parts {
		parts[name] = textRunRegex.ReplaceAllFunc(data, func(run []byte) []byte {
			m := textRunRegex.FindSubmatch(run)
			s := html.UnescapeString(string(m[2]))
			idx, ok := unique[s]
			if !ok {
				return run
			}
			var buf bytes.Buffer
			buf.Write(m[1])
			xml.EscapeText(&buf, []byte(translated[idx]))
			buf.Write(m[3])
			return buf.Bytes()
		})
	}

	return writePresentation(zr.File, parts, outPath)
}

func readZipEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func writePresentation(files []*zip.File, replaced map[string][]byte, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return errs.Wrap(errs.KindInternal, "write presentation", err)
	}
	out, err := os.Create(outPath)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "write presentation", err)
	}
	zw := zip.NewWriter(out)

	for _, f := range files {
		data, ok := replaced[f.Name]
		if !ok {
			if err := zw.Copy(f); err != nil {
				out.Close()
				return errs.Wrap(errs.KindInternal, "write presentation", err)
			}
			continue
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: f.Name, Method: zip.Deflate, Modified: f.Modified})
		if err == nil {
			_, err = w.Write(data)
		}
		if err != nil {
			out.Close()
			return errs.Wrap(errs.KindInternal, "write presentation", err)
		}
	}

	if err := zw.Close(); err != nil {
		out.Close()
		return errs.Wrap(errs.KindInternal, "write presentation", err)
	}
	if err := out.Close(); err != nil {
		return errs.Wrap(errs.KindInternal, "write presentation", err)
	}
	logger.Debug("Wrote %s (%d slide parts rewritten)", filepath.Base(outPath), len(replaced))
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errs.Wrap(errs.KindInternal, "write output", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errs.Wrap(errs.KindInternal, "write output", err)
	}
	return nil
}
