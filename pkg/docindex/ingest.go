package docindex

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ReleaseNote is the YAML shape of a release notes file.
type ReleaseNote struct {
	Version         string           `yaml:"version"`
	ReleaseDate     string           `yaml:"release_date"`
	Summary         string           `yaml:"summary"`
	Features        []Feature        `yaml:"features"`
	BugFixes        []BugFix         `yaml:"bug_fixes"`
	BreakingChanges []BreakingChange `yaml:"breaking_changes"`
	Deprecations    []Deprecation    `yaml:"deprecations"`
}

type Feature struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type BugFix struct {
	Description string `yaml:"description"`
	Severity    string `yaml:"severity"`
}

type BreakingChange struct {
	Change string `yaml:"change"`
	Impact string `yaml:"impact"`
}

type Deprecation struct {
	Feature      string `yaml:"feature"`
	DeprecatedIn string `yaml:"deprecated_in"`
}

// Render flattens the structured note into searchable prose. Structured YAML
// embeds poorly; a text rendition keeps field names next to their values.
func (n ReleaseNote) Render() string {
	var parts []string

	version := n.Version
	if version == "" {
		version = "Unknown"
	}
	date := n.ReleaseDate
	if date == "" {
		date = "Unknown"
	}

	parts = append(parts, fmt.Sprintf("Version: %s", version))
	parts = append(parts, fmt.Sprintf("Release Date: %s", date))
	parts = append(parts, fmt.Sprintf("\nSummary:\n%s", n.Summary))

	if len(n.Features) > 0 {
		parts = append(parts, "\nFeatures:")
		for _, f := range n.Features {
			parts = append(parts, fmt.Sprintf("- %s: %s", f.Name, f.Description))
		}
	}
	if len(n.BugFixes) > 0 {
		parts = append(parts, "\nBug Fixes:")
		for _, fix := range n.BugFixes {
			parts = append(parts, fmt.Sprintf("- %s (Severity: %s)", fix.Description, fix.Severity))
		}
	}
	if len(n.BreakingChanges) > 0 {
		parts = append(parts, "\nBreaking Changes:")
		for _, change := range n.BreakingChanges {
			parts = append(parts, fmt.Sprintf("- %s: %s", change.Change, change.Impact))
		}
	}
	if len(n.Deprecations) > 0 {
		parts = append(parts, "\nDeprecations:")
		for _, dep := range n.Deprecations {
			parts = append(parts, fmt.Sprintf("- %s (Deprecated in %s)", dep.Feature, dep.DeprecatedIn))
		}
	}

	return strings.Join(parts, "\n")
}

// IngestSupportDocs chunks every markdown file under dir into the
// support_docs collection. A missing directory is logged, not fatal.
func (idx *Index) IngestSupportDocs(ctx context.Context, dir string) (int, error) {
	files, err := globFiles(dir, "*.md")
	if err != nil {
		return 0, err
	}

	total := 0
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			return total, fmt.Errorf("failed to read %s: %w", file, err)
		}

		metadata := map[string]string{
			"source": filepath.Base(file),
			"type":   "support_doc",
		}

		n, err := idx.addChunks(ctx, CollectionSupportDocs, string(content), metadata)
		if err != nil {
			return total, err
		}
		slog.Info("ingested support doc", "source", filepath.Base(file), "chunks", n)
		total += n
	}

	return total, nil
}

// IngestReleaseNotes renders every YAML file under dir into text and chunks
// it into the release_notes collection.
func (idx *Index) IngestReleaseNotes(ctx context.Context, dir string) (int, error) {
	files, err := globFiles(dir, "*.yaml")
	if err != nil {
		return 0, err
	}

	total := 0
	for _, file := range files {
		raw, err := os.ReadFile(file)
		if err != nil {
			return total, fmt.Errorf("failed to read %s: %w", file, err)
		}

		var note ReleaseNote
		if err := yaml.Unmarshal(raw, &note); err != nil {
			return total, fmt.Errorf("failed to parse %s: %w", file, err)
		}

		version := note.Version
		if version == "" {
			version = "Unknown"
		}
		metadata := map[string]string{
			"source":  filepath.Base(file),
			"version": version,
			"type":    "release_note",
		}

		n, err := idx.addChunks(ctx, CollectionReleaseNotes, note.Render(), metadata)
		if err != nil {
			return total, err
		}
		slog.Info("ingested release notes", "source", filepath.Base(file), "version", version, "chunks", n)
		total += n
	}

	return total, nil
}

func (idx *Index) addChunks(ctx context.Context, collection, content string, metadata map[string]string) (int, error) {
	chunks := ChunkText(content, ChunkSize, ChunkOverlap)

	for i, chunk := range chunks {
		chunkMeta := make(map[string]string, len(metadata)+2)
		for k, v := range metadata {
			chunkMeta[k] = v
		}
		chunkMeta["chunk_index"] = strconv.Itoa(i)
		chunkMeta["total_chunks"] = strconv.Itoa(len(chunks))

		id := fmt.Sprintf("%s_chunk%d", metadata["source"], i)
		if err := idx.Add(ctx, collection, id, chunk, chunkMeta); err != nil {
			return i, err
		}
	}

	return len(chunks), nil
}

func globFiles(dir, pattern string) ([]string, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		slog.Warn("document directory not found", "dir", dir)
		return nil, nil
	}

	files, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	return files, nil
}
