package domain

import "fmt"

// ContentKind distinguishes the two collections of the catalog.
type ContentKind string

const (
	// KindLesson identifies theory lessons with short challenges.
	KindLesson ContentKind = "lesson"
	// KindProject identifies guided multi-challenge projects.
	KindProject ContentKind = "project"
)

// ParseContentKind accepts both singular and plural spellings ("lessons").
func ParseContentKind(s string) (ContentKind, error) {
	switch s {
	case "lesson", "lessons":
		return KindLesson, nil
	case "project", "projects":
		return KindProject, nil
	default:
		return "", fmt.Errorf("unknown content kind %q", s)
	}
}

// Code is an HTML/CSS pair, used for starter code, solutions and learner buffers.
type Code struct {
	HTML string `json:"html" yaml:"html"`
	CSS  string `json:"css" yaml:"css"`
}

// Lesson is a theory unit with a playground and challenges.
type Lesson struct {
	Slug        string      `json:"slug" yaml:"slug"`
	Title       string      `json:"title" yaml:"title"`
	Order       int         `json:"order" yaml:"order"`
	DurationMin int         `json:"duration_min" yaml:"durationMin"`
	Tags        []string    `json:"tags" yaml:"tags"`
	TheoryMD    string      `json:"theory_md" yaml:"theoryMd"`
	Checklist   []string    `json:"checklist" yaml:"checklist"`
	Challenges  []Challenge `json:"challenges" yaml:"challenges"`
	Starter     Code        `json:"starter" yaml:"starter"`
	Solution    Code        `json:"solution" yaml:"solution"`
}

// Project is a larger exercise with a brief and acceptance criteria.
type Project struct {
	Slug        string      `json:"slug" yaml:"slug"`
	Title       string      `json:"title" yaml:"title"`
	Order       int         `json:"order" yaml:"order"`
	DurationMin int         `json:"duration_min" yaml:"durationMin"`
	Tags        []string    `json:"tags" yaml:"tags"`
	BriefMD     string      `json:"brief_md" yaml:"briefMd"`
	Checklist   []string    `json:"checklist" yaml:"checklist"`
	Acceptance  []string    `json:"acceptance" yaml:"acceptance"`
	Challenges  []Challenge `json:"challenges" yaml:"challenges"`
	Starter     Code        `json:"starter" yaml:"starter"`
	Solution    Code        `json:"solution" yaml:"solution"`
}

// Entry is the kind-independent view of a lesson or project.
type Entry struct {
	Kind        ContentKind `json:"kind"`
	Slug        string      `json:"slug"`
	Title       string      `json:"title"`
	Order       int         `json:"order"`
	DurationMin int         `json:"duration_min"`
	Tags        []string    `json:"tags"`
	Markdown    string      `json:"-"`
	Checklist   []string    `json:"-"`
	Acceptance  []string    `json:"-"`
	Challenges  []Challenge `json:"-"`
	Starter     Code        `json:"-"`
	Solution    Code        `json:"-"`
}

// HasSolution reports whether any solution code was authored.
func (e *Entry) HasSolution() bool {
	return e.Solution.HTML != "" || e.Solution.CSS != ""
}

// Entry returns the generic view of the lesson.
func (l *Lesson) Entry() *Entry {
	return &Entry{
		Kind:        KindLesson,
		Slug:        l.Slug,
		Title:       l.Title,
		Order:       l.Order,
		DurationMin: l.DurationMin,
		Tags:        l.Tags,
		Markdown:    l.TheoryMD,
		Checklist:   l.Checklist,
		Challenges:  l.Challenges,
		Starter:     l.Starter,
		Solution:    l.Solution,
	}
}

// Entry returns the generic view of the project.
func (p *Project) Entry() *Entry {
	return &Entry{
		Kind:        KindProject,
		Slug:        p.Slug,
		Title:       p.Title,
		Order:       p.Order,
		DurationMin: p.DurationMin,
		Tags:        p.Tags,
		Markdown:    p.BriefMD,
		Checklist:   p.Checklist,
		Acceptance:  p.Acceptance,
		Challenges:  p.Challenges,
		Starter:     p.Starter,
		Solution:    p.Solution,
	}
}
