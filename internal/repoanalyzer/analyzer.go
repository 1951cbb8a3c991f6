package repoanalyzer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"impact-backend/internal/analysis"
	"impact-backend/internal/shared/telemetry"
)

const (
	// DefaultCloneTimeout bounds each clone attempt.
	DefaultCloneTimeout = 60 * time.Second

	maxStructureSample = 10
	maxLanguages       = 5
	maxManifestChars   = 1000
	maxDependencyChars = 500
)

// languageExtensions are the source extensions counted as languages.
var languageExtensions = map[string]bool{
	".py": true, ".js": true, ".jsx": true, ".ts": true, ".tsx": true,
	".java": true, ".go": true, ".rs": true, ".php": true, ".rb": true,
	".cs": true, ".html": true, ".css": true,
}

// manifestNames are the dependency manifests sampled during the walk.
var manifestNames = map[string]bool{
	"package.json":     true,
	"requirements.txt": true,
	"pom.xml":          true,
	"build.gradle":     true,
	"Cargo.toml":       true,
	"go.mod":           true,
}

// skippedDirs are never descended into.
var skippedDirs = map[string]bool{
	"node_modules": true,
	"__pycache__":  true,
	"venv":         true,
	"env":          true,
}

// Analyzer clones a repository shallowly and produces a bounded text summary
// of its languages, layout and dependency manifests.
type Analyzer struct {
	CloneTimeout time.Duration

	// clone is overridable in tests; the default shells out to git.
	clone func(ctx context.Context, url, dir string) error
}

// New constructs an Analyzer with the given clone timeout. A non-positive
// timeout falls back to DefaultCloneTimeout.
func New(cloneTimeout time.Duration) *Analyzer {
	if cloneTimeout <= 0 {
		cloneTimeout = DefaultCloneTimeout
	}
	return &Analyzer{CloneTimeout: cloneTimeout}
}

// Summarize clones url into a temp directory and summarizes its contents.
// It returns ErrAnalysisUnavailable when the repository cannot be cloned.
func (a *Analyzer) Summarize(ctx context.Context, url string) (string, error) {
	if strings.TrimSpace(url) == "" {
		return "", fmt.Errorf("%w: empty url", analysis.ErrAnalysisUnavailable)
	}

	dir, err := os.MkdirTemp("", "repoanalyzer-*")
	if err != nil {
		return "", fmt.Errorf("%w: mkdtemp: %v", analysis.ErrAnalysisUnavailable, err)
	}
	defer os.RemoveAll(dir)

	if err := a.cloneRepo(ctx, url, dir); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		telemetry.Info("repoanalyzer.clone_failed", map[string]any{
			"repository_url": url,
			"error":          err.Error(),
		})
		return "", fmt.Errorf("%w: %v", analysis.ErrAnalysisUnavailable, err)
	}

	report, err := walkRepo(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", analysis.ErrAnalysisUnavailable, err)
	}
	return report.render(), nil
}

func (a *Analyzer) cloneRepo(ctx context.Context, url, dir string) error {
	clone := a.clone
	if clone == nil {
		clone = a.gitClone
	}

	// Shallow first; some servers reject depth-limited fetches.
	shallowErr := clone(ctx, url, dir)
	if shallowErr == nil {
		return nil
	}
	if ctx.Err() != nil {
		return shallowErr
	}

	if err := clearDir(dir); err != nil {
		return err
	}
	if err := a.gitCloneFull(ctx, url, dir); err != nil {
		return fmt.Errorf("shallow: %v; full: %w", shallowErr, err)
	}
	return nil
}

func (a *Analyzer) gitClone(ctx context.Context, url, dir string) error {
	return a.runGit(ctx, "clone", "--depth", "1", url, dir)
}

func (a *Analyzer) gitCloneFull(ctx context.Context, url, dir string) error {
	if a.clone != nil {
		// Tests stub cloning entirely; there is no separate full-clone path.
		return a.clone(ctx, url, dir)
	}
	return a.runGit(ctx, "clone", url, dir)
}

func (a *Analyzer) runGit(ctx context.Context, args ...string) error {
	timeout := a.CloneTimeout
	if timeout <= 0 {
		timeout = DefaultCloneTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			msg = err.Error()
		}
		return fmt.Errorf("git %s: %s", args[0], msg)
	}
	return nil
}

func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

type repoReport struct {
	structure []string
	languages map[string]bool
	manifests map[string]string
}

func walkRepo(root string) (*repoReport, error) {
	report := &repoReport{
		languages: make(map[string]bool),
		manifests: make(map[string]string),
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path == root {
				return nil
			}
			if strings.HasPrefix(name, ".") || skippedDirs[name] {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		report.structure = append(report.structure, filepath.ToSlash(rel))

		ext := strings.ToLower(filepath.Ext(name))
		if languageExtensions[ext] {
			report.languages[ext] = true
		}

		if manifestNames[name] {
			raw, readErr := os.ReadFile(path)
			if readErr == nil {
				content := string(raw)
				if len(content) > maxManifestChars {
					content = content[:maxManifestChars]
				}
				report.manifests[name] = content
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(report.structure)
	return report, nil
}

// render produces the bounded summary injected into generation prompts.
func (r *repoReport) render() string {
	languages := make([]string, 0, len(r.languages))
	for ext := range r.languages {
		languages = append(languages, ext)
	}
	sort.Strings(languages)
	if len(languages) > maxLanguages {
		languages = languages[:maxLanguages]
	}

	sample := r.structure
	if len(sample) > maxStructureSample {
		sample = sample[:maxStructureSample]
	}

	var deps strings.Builder
	manifestNames := make([]string, 0, len(r.manifests))
	for name := range r.manifests {
		manifestNames = append(manifestNames, name)
	}
	sort.Strings(manifestNames)
	for _, name := range manifestNames {
		if deps.Len() >= maxDependencyChars {
			break
		}
		fmt.Fprintf(&deps, "%s:\n%s\n", name, r.manifests[name])
	}
	depText := deps.String()
	if len(depText) > maxDependencyChars {
		depText = depText[:maxDependencyChars]
	}

	var b strings.Builder
	b.WriteString("Languages Detected: ")
	b.WriteString(strings.Join(languages, ", "))
	b.WriteString("\nFile Structure Sample: ")
	b.WriteString(strings.Join(sample, ", "))
	b.WriteString("\nDependencies:\n")
	b.WriteString(depText)
	return strings.TrimSpace(b.String())
}

var _ analysis.RepositoryAnalyzer = (*Analyzer)(nil)
