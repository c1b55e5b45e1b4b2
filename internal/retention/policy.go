package retention

import (
	"strings"
	"time"
)

// UploadRules controls retention of raw uploaded files.
type UploadRules struct {
	MaxAge                time.Duration
	RemoveAfterProcessing bool
	ExemptExtensions      []string
}

// TempFileRules controls retention of intermediate processing files.
type TempFileRules struct {
	MaxAge time.Duration
}

// ResultRules controls retention of per-document result directories.
type ResultRules struct {
	MaxAge             time.Duration
	ConsiderLastAccess bool
	ExemptTags         []string
}

// Policy holds the retention rules for every managed file category.
// It is built once at process start and treated as read-only after that.
type Policy struct {
	uploads   UploadRules
	tempFiles TempFileRules
	results   ResultRules

	exemptExts map[string]struct{}
	exemptTags map[string]struct{}
}

// Overrides carries optional per-category replacements for the defaults.
// Nil fields keep the default for that category; inside a category only
// set fields replace defaults, so overriding results max age does not
// lose the last-access setting.
type Overrides struct {
	UploadMaxAge          *time.Duration
	RemoveAfterProcessing *bool
	ExemptExtensions      []string

	TempFileMaxAge *time.Duration

	ResultMaxAge       *time.Duration
	ConsiderLastAccess *bool
	ExemptTags         []string
}

func defaults() Policy {
	return Policy{
		uploads: UploadRules{
			MaxAge:                24 * time.Hour,
			RemoveAfterProcessing: true,
		},
		tempFiles: TempFileRules{MaxAge: 24 * time.Hour},
		results: ResultRules{
			MaxAge:             30 * 24 * time.Hour,
			ConsiderLastAccess: true,
			ExemptTags:         []string{"important", "permanent"},
		},
	}
}

// New builds a policy from the defaults with the given overrides merged
// field by field. Negative ages are ignored and the default retained.
func New(ov Overrides) *Policy {
	p := defaults()

	if ov.UploadMaxAge != nil && *ov.UploadMaxAge >= 0 {
		p.uploads.MaxAge = *ov.UploadMaxAge
	}
	if ov.RemoveAfterProcessing != nil {
		p.uploads.RemoveAfterProcessing = *ov.RemoveAfterProcessing
	}
	if ov.ExemptExtensions != nil {
		p.uploads.ExemptExtensions = ov.ExemptExtensions
	}
	if ov.TempFileMaxAge != nil && *ov.TempFileMaxAge >= 0 {
		p.tempFiles.MaxAge = *ov.TempFileMaxAge
	}
	if ov.ResultMaxAge != nil && *ov.ResultMaxAge >= 0 {
		p.results.MaxAge = *ov.ResultMaxAge
	}
	if ov.ConsiderLastAccess != nil {
		p.results.ConsiderLastAccess = *ov.ConsiderLastAccess
	}
	if ov.ExemptTags != nil {
		p.results.ExemptTags = ov.ExemptTags
	}

	p.exemptExts = make(map[string]struct{}, len(p.uploads.ExemptExtensions))
	for _, ext := range p.uploads.ExemptExtensions {
		p.exemptExts[normalizeExt(ext)] = struct{}{}
	}
	p.exemptTags = make(map[string]struct{}, len(p.results.ExemptTags))
	for _, tag := range p.results.ExemptTags {
		p.exemptTags[tag] = struct{}{}
	}
	return &p
}

// Default returns the policy with no overrides applied.
func Default() *Policy { return New(Overrides{}) }

func (p *Policy) UploadMaxAge() time.Duration   { return p.uploads.MaxAge }
func (p *Policy) TempFileMaxAge() time.Duration { return p.tempFiles.MaxAge }
func (p *Policy) ResultMaxAge() time.Duration   { return p.results.MaxAge }

func (p *Policy) RemoveAfterProcessing() bool { return p.uploads.RemoveAfterProcessing }
func (p *Policy) ConsiderLastAccess() bool    { return p.results.ConsiderLastAccess }

// ExtensionExempt reports whether an upload with the given extension must
// never be removed automatically. The leading dot is optional and matching
// is case-insensitive.
func (p *Policy) ExtensionExempt(ext string) bool {
	_, ok := p.exemptExts[normalizeExt(ext)]
	return ok
}

// ResultExempt reports whether a result carrying the given tags is exempt
// from removal. Any intersection with the exempt tag set is enough.
func (p *Policy) ResultExempt(tags []string) bool {
	for _, tag := range tags {
		if _, ok := p.exemptTags[tag]; ok {
			return true
		}
	}
	return false
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
