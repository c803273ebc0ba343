package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"github.com/nocodo/manager/internal/tools/files"
)

const (
	grepDefaultMaxResults       = 100
	grepDefaultMaxFilesSearched = 1000
	grepMaxResponseBytes        = 100 * 1024
)

// skipDirNames are directories never descended into, matching common
// build-artifact and dependency directories.
var skipDirNames = map[string]bool{
	"target": true, "node_modules": true, ".git": true, "dist": true,
	"build": true, "__pycache__": true, ".next": true, ".nuxt": true,
	".vuepress": true, ".cache": true, ".parcel-cache": true,
}

var skipFileNames = map[string]bool{
	".DS_Store": true, "Thumbs.db": true, "desktop.ini": true,
	"Cargo.lock": true, "package-lock.json": true, "yarn.lock": true,
	"pnpm-lock.yaml": true,
}

var binaryExtensions = map[string]bool{
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".bin": true,
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true,
	".tiff": true, ".ico": true, ".pdf": true, ".zip": true, ".tar": true,
	".gz": true, ".bz2": true, ".xz": true, ".7z": true, ".rar": true,
	".pyc": true, ".pyo": true,
}

// GrepConfig controls the grep tool's base directory and result caps.
type GrepConfig struct {
	BaseDir          string
	MaxResults       int
	MaxFilesSearched int
}

// GrepHandler implements the grep tool (§4.3): a recursive, regex-based
// content search bounded to files under BaseDir, skipping dotfiles,
// build-artifact directories, lockfiles and likely-binary extensions.
type GrepHandler struct {
	resolver         files.Resolver
	maxResults       int
	maxFilesSearched int
}

// NewGrepHandler builds a grep handler from cfg.
func NewGrepHandler(cfg GrepConfig) *GrepHandler {
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = grepDefaultMaxResults
	}
	maxFiles := cfg.MaxFilesSearched
	if maxFiles <= 0 {
		maxFiles = grepDefaultMaxFilesSearched
	}
	return &GrepHandler{
		resolver:         files.Resolver{Root: cfg.BaseDir},
		maxResults:       maxResults,
		maxFilesSearched: maxFiles,
	}
}

type grepArgs struct {
	Pattern            string `json:"pattern"`
	Path               string `json:"path"`
	CaseSensitive      bool   `json:"case_sensitive"`
	IncludePattern     string `json:"include_pattern"`
	ExcludePattern     string `json:"exclude_pattern"`
	Recursive          *bool  `json:"recursive"`
	MaxResults         int    `json:"max_results"`
	MaxFilesSearched   int    `json:"max_files_searched"`
	IncludeLineNumbers *bool  `json:"include_line_numbers"`
}

type grepMatch struct {
	FilePath    string `json:"file_path"`
	LineNumber  *int   `json:"line_number,omitempty"`
	LineContent string `json:"line_content"`
	MatchStart  int    `json:"match_start"`
	MatchEnd    int    `json:"match_end"`
	MatchedText string `json:"matched_text"`
}

type grepOutput struct {
	Pattern       string      `json:"pattern"`
	Matches       []grepMatch `json:"matches"`
	TotalMatches  int         `json:"total_matches"`
	FilesSearched int         `json:"files_searched"`
	Truncated     bool        `json:"truncated"`
}

// Execute implements Handler for the grep tool.
func (h *GrepHandler) Execute(ctx context.Context, call Call) Result {
	args, err := grepArgsFromJSON(call.Arguments)
	if err != nil {
		return Result{Err: err}
	}
	out, err := h.run(args)
	if err != nil {
		return Result{Err: err}
	}
	payload, err := json.Marshal(out)
	if err != nil {
		return Result{Err: fmt.Errorf("grep: encode result: %w", err)}
	}
	return Result{Payload: payload}
}

func (h *GrepHandler) run(args grepArgs) (grepOutput, error) {
	if args.Pattern == "" {
		return grepOutput{}, fmt.Errorf("grep: pattern is required")
	}
	searchPath := h.resolver.Root
	if args.Path != "" {
		resolved, err := h.resolver.Resolve(args.Path)
		if err != nil {
			return grepOutput{}, err
		}
		searchPath = resolved
	}
	info, err := os.Stat(searchPath)
	if err != nil {
		return grepOutput{}, fmt.Errorf("grep: search path does not exist: %w", err)
	}

	flags := "(?i)"
	if args.CaseSensitive {
		flags = ""
	}
	re, err := regexp.Compile(flags + args.Pattern)
	if err != nil {
		return grepOutput{}, fmt.Errorf("grep: invalid pattern: %w", err)
	}

	var includeGlob, excludeGlob glob.Glob
	if args.IncludePattern != "" {
		includeGlob, err = glob.Compile(args.IncludePattern)
		if err != nil {
			return grepOutput{}, fmt.Errorf("grep: invalid include_pattern: %w", err)
		}
	}
	if args.ExcludePattern != "" {
		excludeGlob, err = glob.Compile(args.ExcludePattern)
		if err != nil {
			return grepOutput{}, fmt.Errorf("grep: invalid exclude_pattern: %w", err)
		}
	}

	maxResults := h.maxResults
	if args.MaxResults > 0 {
		maxResults = args.MaxResults
	}
	maxFiles := h.maxFilesSearched
	if args.MaxFilesSearched > 0 {
		maxFiles = args.MaxFilesSearched
	}
	recursive := true
	if args.Recursive != nil {
		recursive = *args.Recursive
	}
	includeLineNumbers := true
	if args.IncludeLineNumbers != nil {
		includeLineNumbers = *args.IncludeLineNumbers
	}

	out := grepOutput{Pattern: args.Pattern}
	filesSearched := 0

	visit := func(path string, d os.DirEntry) error {
		if filesSearched >= maxFiles {
			return errStopWalk
		}
		name := d.Name()
		if d.IsDir() {
			if path != searchPath && (strings.HasPrefix(name, ".") || skipDirNames[name]) {
				return filepath.SkipDir
			}
			return nil
		}

		rel := relativeDisplayPath(searchPath, path, info.IsDir())

		if includeGlob != nil && !includeGlob.Match(rel) {
			return nil
		}
		if excludeGlob != nil && excludeGlob.Match(rel) {
			return nil
		}
		if shouldSkipFile(name, rel) {
			return nil
		}

		filesSearched++
		if filesSearched > maxFiles {
			return errStopWalk
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		if len(out.Matches) >= maxResults {
			return errStopWalk
		}

		for lineIdx, line := range strings.Split(string(content), "\n") {
			if len(out.Matches) >= maxResults {
				break
			}
			for _, loc := range re.FindAllStringIndex(line, -1) {
				if len(out.Matches) >= maxResults {
					break
				}
				m := grepMatch{
					FilePath:    rel,
					LineContent: line,
					MatchStart:  loc[0],
					MatchEnd:    loc[1],
					MatchedText: line[loc[0]:loc[1]],
				}
				if includeLineNumbers {
					n := lineIdx + 1
					m.LineNumber = &n
				}
				out.Matches = append(out.Matches, m)
			}
		}
		return nil
	}

	err = walk(searchPath, recursive, visit)
	if err != nil && err != errStopWalk {
		return grepOutput{}, fmt.Errorf("grep: walk failed: %w", err)
	}

	out.FilesSearched = filesSearched
	out.TotalMatches = len(out.Matches)
	out.Truncated = len(out.Matches) >= maxResults
	truncateForSize(&out)
	return out, nil
}

var errStopWalk = fmt.Errorf("grep: stop walk")

func walk(root string, recursive bool, visit func(path string, d os.DirEntry) error) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		entry := direntFromInfo(info)
		return ignoreSkipDir(visit(root, entry))
	}
	if !recursive {
		entries, err := os.ReadDir(root)
		if err != nil {
			return err
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
		for _, e := range entries {
			if err := ignoreSkipDir(visit(filepath.Join(root, e.Name()), e)); err != nil {
				return err
			}
		}
		return nil
	}
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		return visit(path, d)
	})
}

func ignoreSkipDir(err error) error {
	if err == filepath.SkipDir {
		return nil
	}
	return err
}

type dirEntryFromInfo struct{ os.FileInfo }

func (d dirEntryFromInfo) Type() os.FileMode          { return d.FileInfo.Mode().Type() }
func (d dirEntryFromInfo) Info() (os.FileInfo, error) { return d.FileInfo, nil }

func direntFromInfo(info os.FileInfo) os.DirEntry { return dirEntryFromInfo{info} }

func relativeDisplayPath(searchPath, filePath string, searchPathIsDir bool) string {
	if !searchPathIsDir {
		return filepath.Base(filePath)
	}
	rel, err := filepath.Rel(searchPath, filePath)
	if err != nil {
		return filePath
	}
	return rel
}

func shouldSkipFile(name, relPath string) bool {
	if strings.HasPrefix(name, ".") || skipFileNames[name] {
		return true
	}
	if binaryExtensions[strings.ToLower(filepath.Ext(name))] {
		return true
	}
	for _, component := range strings.Split(relPath, string(filepath.Separator)) {
		if skipDirNames[component] || strings.HasPrefix(component, ".") {
			return true
		}
	}
	return false
}

func truncateForSize(out *grepOutput) {
	estimate := 0
	kept := out.Matches[:0:0]
	for _, m := range out.Matches {
		size := len(m.FilePath) + len(m.LineContent) + len(m.MatchedText) + 100
		if estimate+size > grepMaxResponseBytes {
			out.Truncated = true
			break
		}
		estimate += size
		kept = append(kept, m)
	}
	out.Matches = kept
	out.TotalMatches = len(kept)
}

func grepArgsFromJSON(raw json.RawMessage) (grepArgs, error) {
	var args grepArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return grepArgs{}, fmt.Errorf("invalid arguments: %w", err)
	}
	return args, nil
}
