// Package images pulls embedded pictures out of a .docx and records the
// text around each one, so a picture can later be placed in the section it
// belongs to.
package images

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/dgallion1/docforge/internal/office"
)

// DefaultWindow is how many non-empty paragraphs of context are kept on
// each side of an image.
const DefaultWindow = 3

// Metadata describes one extracted image.
type Metadata struct {
	Path           string `json:"path"` // inside the run's scratch directory
	Filename       string `json:"filename"`
	ParagraphIndex int    `json:"paragraph_index"`
	PrecedingText  string `json:"preceding_text"`
	FollowingText  string `json:"following_text"`
	ParagraphText  string `json:"paragraph_text"`
}

// Run owns the scratch directory of one extraction. Call Cleanup when done.
type Run struct {
	Dir    string
	Images []Metadata

	log *slog.Logger
}

// Cleanup removes the scratch directory. Failures are logged.
func (r *Run) Cleanup() {
	if r == nil || r.Dir == "" {
		return
	}
	if err := os.RemoveAll(r.Dir); err != nil {
		r.log.Warn("remove image scratch dir", "dir", r.Dir, "error", err)
	}
}

// Extractor copies media out of documents and pairs it with paragraphs.
type Extractor struct {
	Matchers []office.ImageMatcher // nil means office.DefaultMatchers
	Window   int
	TempDir  string // parent for scratch dirs; "" means os.TempDir()

	log *slog.Logger
}

func NewExtractor(log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Extractor{Window: DefaultWindow, log: log}
}

// Extract opens the .docx at path and extracts its images.
func (x *Extractor) Extract(path string) (*Run, error) {
	doc, err := office.Open(path)
	if err != nil {
		return nil, err
	}
	return x.ExtractDocument(doc)
}

// ExtractDocument copies every word/media file into a new scratch
// directory, then walks the body paragraphs and assigns one binary to each
// image paragraph. The binary named by the paragraph's r:embed is used when
// it is still unassigned; otherwise the next unassigned binary in natural
// name order is taken. On error the scratch directory is already removed.
func (x *Extractor) ExtractDocument(doc *office.Document) (*Run, error) {
	dir, err := os.MkdirTemp(x.TempDir, "docforge-images-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	run := &Run{Dir: dir, log: x.log}

	files, err := copyMedia(doc.Media(), dir)
	if err != nil {
		run.Cleanup()
		return nil, err
	}

	matchers := x.Matchers
	if matchers == nil {
		matchers = office.DefaultMatchers
	}
	window := x.Window
	if window <= 0 {
		window = DefaultWindow
	}

	paras := doc.Paragraphs()
	used := make([]bool, len(files))
	detected := 0
	for i, p := range paras {
		if !office.HasImage(p, matchers) {
			continue
		}
		detected++

		fi := pick(doc, p, files, used)
		if fi < 0 {
			continue
		}
		used[fi] = true
		before, after := contextWindow(paras, i, window)
		run.Images = append(run.Images, Metadata{
			Path:           files[fi].path,
			Filename:       files[fi].name,
			ParagraphIndex: p.Index,
			PrecedingText:  before,
			FollowingText:  after,
			ParagraphText:  strings.TrimSpace(p.Text),
		})
	}

	if detected != len(files) {
		x.log.Warn("image paragraphs and media files differ",
			"paragraphs", detected, "media", len(files), "matched", len(run.Images))
	}
	return run, nil
}

type mediaFile struct {
	archive string // name inside word/media
	name    string // name in the scratch dir
	path    string
}

func copyMedia(media []office.MediaFile, dir string) ([]mediaFile, error) {
	slices.SortStableFunc(media, func(a, b office.MediaFile) int { return naturalCompare(a.Name, b.Name) })

	taken := make(map[string]bool)
	out := make([]mediaFile, 0, len(media))
	for _, m := range media {
		name := uniqueName(m.Name, taken)
		taken[name] = true
		dst := filepath.Join(dir, name)
		if err := copyFile(m, dst); err != nil {
			return nil, fmt.Errorf("copy %s: %w", m.Name, err)
		}
		out = append(out, mediaFile{archive: m.Name, name: name, path: dst})
	}
	return out, nil
}

// uniqueName appends _1, _2 ... before the extension until name is free.
func uniqueName(name string, taken map[string]bool) string {
	if !taken[name] {
		return name
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for n := 1; ; n++ {
		c := fmt.Sprintf("%s_%d%s", base, n, ext)
		if !taken[c] {
			return c
		}
	}
}

func copyFile(m office.MediaFile, dst string) (err error) {
	src, err := m.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, f.Close()) }()
	_, err = io.Copy(f, src)
	return err
}

func pick(doc *office.Document, p office.Item, files []mediaFile, used []bool) int {
	if p.Para != nil {
		for _, rid := range office.EmbedIDs(p.Para) {
			target, ok := doc.EmbedTarget(rid)
			if !ok {
				continue
			}
			for i, f := range files {
				if !used[i] && f.archive == target {
					return i
				}
			}
		}
	}
	for i := range files {
		if !used[i] {
			return i
		}
	}
	return -1
}

// contextWindow returns up to n non-empty paragraph texts on each side of
// paras[i], nearest last for the preceding side, joined by newlines.
func contextWindow(paras []office.Item, i, n int) (before, after string) {
	var pre []string
	for j := i - 1; j >= 0 && len(pre) < n; j-- {
		if t := strings.TrimSpace(paras[j].Text); t != "" {
			pre = append(pre, t)
		}
	}
	slices.Reverse(pre)

	var post []string
	for j := i + 1; j < len(paras) && len(post) < n; j++ {
		if t := strings.TrimSpace(paras[j].Text); t != "" {
			post = append(post, t)
		}
	}
	return strings.Join(pre, "\n"), strings.Join(post, "\n")
}

// naturalCompare orders names so that image2.png sorts before image10.png.
func naturalCompare(a, b string) int {
	for a != "" && b != "" {
		ra, rb := rune(a[0]), rune(b[0])
		if unicode.IsDigit(ra) && unicode.IsDigit(rb) {
			na, resta := leadingNumber(a)
			nb, restb := leadingNumber(b)
			if na != nb {
				if na < nb {
					return -1
				}
				return 1
			}
			a, b = resta, restb
			continue
		}
		if ra != rb {
			if ra < rb {
				return -1
			}
			return 1
		}
		a, b = a[1:], b[1:]
	}
	return len(a) - len(b)
}

func leadingNumber(s string) (int, string) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	n, err := strconv.Atoi(s[:i])
	if err != nil {
		n = 0
	}
	return n, s[i:]
}
