package stages

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/petrijr/auraflow/pkg/api"
)

const (
	DefaultVenturesDir = "ventures"
	DefaultTargetWords = 5000

	artifactName = "product.md"
)

// ErrEmptyOutline is returned when the outline yields no usable sections.
var ErrEmptyOutline = errors.New("outline has no sections")

// Production writes the e-book for a venture's chosen topic.
//
// The outline is mandatory; a section whose body cannot be generated is
// left out of the document and listed in ProductDetails.OmittedSections.
type Production struct {
	Completer Completer

	// Fs receives the artifact; nil means the OS filesystem.
	Fs afero.Fs
	// VenturesDir is the root for per-venture artifacts.
	VenturesDir string
	// TargetWords is the approximate length of the whole document.
	TargetWords int
	Model       string

	Logger zerolog.Logger
}

var _ api.StageExecutor = (*Production)(nil)

func (p *Production) Execute(ctx context.Context, in api.StageInput) (any, error) {
	if in.NicheIdea == nil {
		return nil, &api.PreconditionError{Field: api.FieldNicheIdea, Reason: api.ReasonAbsent}
	}
	topic := in.NicheIdea.ChosenTopic
	log := p.Logger.With().Str("venture_id", in.Venture.ID).Str("topic", topic).Logger()

	outline, err := p.Completer.Complete(ctx, outlinePrompt(topic, p.targetWords()), p.Model)
	if err != nil {
		return nil, fmt.Errorf("generate outline: %w", err)
	}
	sections := parseOutline(outline)
	if len(sections) == 0 {
		return nil, ErrEmptyOutline
	}
	log.Info().Int("sections", len(sections)).Msg("outline generated")

	words := p.targetWords() / len(sections)

	var (
		doc     strings.Builder
		written []string
		omitted []string
	)
	fmt.Fprintf(&doc, "# %s\n\n", topic)
	for i, section := range sections {
		body, err := p.Completer.Complete(ctx, sectionPrompt(topic, section, words), p.Model)
		body = strings.TrimSpace(body)
		if err == nil && body == "" {
			err = errors.New("empty completion")
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn().Err(err).Int("section", i+1).Str("title", section).Msg("section omitted")
			omitted = append(omitted, section)
			continue
		}
		fmt.Fprintf(&doc, "## %s\n\n%s\n\n", section, body)
		written = append(written, section)
	}

	path := filepath.Join(p.venturesDir(), in.Venture.ID, artifactName)
	fs := p.fs()
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create venture directory: %w", err)
	}
	if err := afero.WriteFile(fs, path, []byte(doc.String()), 0o644); err != nil {
		return nil, fmt.Errorf("write artifact: %w", err)
	}

	log.Info().
		Str("path", path).
		Int("written", len(written)).
		Int("omitted", len(omitted)).
		Msg("e-book saved")

	return api.ProductDetails{
		Title:           topic,
		ArtifactPath:    path,
		Sections:        written,
		OmittedSections: omitted,
	}, nil
}

func (p *Production) fs() afero.Fs {
	if p.Fs == nil {
		return afero.NewOsFs()
	}
	return p.Fs
}

func (p *Production) venturesDir() string {
	if p.VenturesDir == "" {
		return DefaultVenturesDir
	}
	return p.VenturesDir
}

func (p *Production) targetWords() int {
	if p.TargetWords <= 0 {
		return DefaultTargetWords
	}
	return p.TargetWords
}

// listMarker matches bullets and numbering such as "-", "*", "1." or "2)".
var listMarker = regexp.MustCompile(`^(?:[-*•]+|\d+[.)])\s+`)

// parseOutline turns an outline completion into section titles, one per
// non-blank line, with list markers and markdown heading hashes removed.
func parseOutline(outline string) []string {
	var sections []string
	for _, line := range strings.Split(outline, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(strings.TrimLeft(line, "#"))
		line = strings.TrimSpace(listMarker.ReplaceAllString(line, ""))
		line = strings.Trim(line, "*_")
		if line != "" {
			sections = append(sections, line)
		}
	}
	return sections
}

func outlinePrompt(topic string, words int) string {
	return fmt.Sprintf(`Write a chapter outline for an e-book titled %q.
The book should be practical and actionable, about %d words in total.
Reply with the chapter titles only, one per line.`, topic, words)
}

func sectionPrompt(topic, section string, words int) string {
	return fmt.Sprintf(`Write the chapter %q of the e-book %q.
Aim for roughly %d words. Be thorough and clear, give practical advice and format it as Markdown.
Do not repeat the chapter title; reply with the chapter body only.`, section, topic, words)
}
