package codebase

import (
	"path"
	"sort"
	"strings"

	"github.com/ppiankov/flowspectre/internal/models"
)

// MaxCandidates is the number of suggestions offered for an unknown path.
const MaxCandidates = 5

// Set is an immutable, path-indexed view over the files of one codebase.
type Set struct {
	files []models.FileEntry
	index map[string]int
}

// NewSet indexes the given entries. Later duplicates of a normalized path are ignored.
func NewSet(files []models.FileEntry) *Set {
	s := &Set{
		files: make([]models.FileEntry, 0, len(files)),
		index: make(map[string]int, len(files)),
	}
	for _, f := range files {
		key := NormalizePath(f.Path)
		if key == "" {
			continue
		}
		if _, dup := s.index[key]; dup {
			continue
		}
		if f.Size == 0 {
			f.Size = len(f.Content)
		}
		f.Path = key
		s.index[key] = len(s.files)
		s.files = append(s.files, f)
	}
	return s
}

// NormalizePath strips leading "./" and "/" and converts separators to "/".
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	p = strings.ReplaceAll(p, "\\", "/")
	for {
		switch {
		case strings.HasPrefix(p, "./"):
			p = p[2:]
		case strings.HasPrefix(p, "/"):
			p = p[1:]
		default:
			if p == "" || p == "." {
				return ""
			}
			return path.Clean(p)
		}
	}
}

// Len returns the number of files.
func (s *Set) Len() int {
	return len(s.files)
}

// Files returns the entries in insertion order.
func (s *Set) Files() []models.FileEntry {
	return s.files
}

// Paths returns every normalized path, sorted.
func (s *Set) Paths() []string {
	paths := make([]string, 0, len(s.files))
	for _, f := range s.files {
		paths = append(paths, f.Path)
	}
	sort.Strings(paths)
	return paths
}

// TotalSize returns the summed size of all files.
func (s *Set) TotalSize() int {
	total := 0
	for _, f := range s.files {
		total += f.Size
	}
	return total
}

// Lookup finds a file by exact path after normalization.
func (s *Set) Lookup(p string) (models.FileEntry, bool) {
	idx, ok := s.index[NormalizePath(p)]
	if !ok {
		return models.FileEntry{}, false
	}
	return s.files[idx], true
}

// Candidates returns up to limit paths whose lowercase name or path segments
// overlap with the requested path. Name matches rank above segment matches.
func (s *Set) Candidates(requested string, limit int) []string {
	if limit <= 0 {
		limit = MaxCandidates
	}
	req := strings.ToLower(NormalizePath(requested))
	if req == "" {
		return nil
	}

	reqName := path.Base(req)
	reqStem := strings.TrimSuffix(reqName, path.Ext(reqName))
	reqSegments := significantSegments(path.Dir(req))

	type scored struct {
		path  string
		score int
	}
	var matches []scored

	for _, f := range s.files {
		lowerPath := strings.ToLower(f.Path)
		name := path.Base(lowerPath)
		stem := strings.TrimSuffix(name, path.Ext(name))

		score := 0
		switch {
		case name == reqName:
			score += 8
		case len(reqStem) >= 2 && strings.Contains(name, reqStem):
			score += 5
		case len(stem) >= 3 && strings.Contains(reqStem, stem):
			score += 3
		case len(reqStem) >= 3 && strings.Contains(lowerPath, reqStem):
			score += 2
		}

		for _, seg := range reqSegments {
			if strings.Contains(lowerPath, seg) {
				score++
			}
		}

		if score == 0 {
			continue
		}
		matches = append(matches, scored{path: f.Path, score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].path < matches[j].path
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.path)
	}
	return out
}

// significantSegments splits a directory into lowercase segments, dropping
// generic names that would match nearly every file.
func significantSegments(dir string) []string {
	if dir == "." || dir == "" {
		return nil
	}
	generic := map[string]bool{"src": true, "app": true, "lib": true, "internal": true, "pkg": true}
	var segs []string
	for _, seg := range strings.Split(dir, "/") {
		if len(seg) < 3 || generic[seg] {
			continue
		}
		segs = append(segs, seg)
	}
	return segs
}
