// Package catalog loads and indexes the lessons and projects of the playground.
package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"

	"github.com/ashureev/codeando/internal/domain"
	"github.com/ashureev/codeando/internal/evaluator"
	"github.com/maruel/natural"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when no lesson or project has the requested slug.
var ErrNotFound = errors.New("content not found")

// file is the on-disk layout of one content file. A file may hold lessons,
// projects, or both.
type file struct {
	Lessons  []*domain.Lesson  `yaml:"lessons"`
	Projects []*domain.Project `yaml:"projects"`
}

// Catalog is an immutable, ordered view of the content.
type Catalog struct {
	lessons  []*domain.Entry
	projects []*domain.Entry
	index    map[domain.ContentKind]map[string]*domain.Entry

	lessonDocs  map[string]*domain.Lesson
	projectDocs map[string]*domain.Project
}

// Load reads every *.yaml / *.yml file at the root of fsys.
func Load(fsys fs.FS) (*Catalog, error) {
	var names []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := fs.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("glob content files: %w", err)
		}
		names = append(names, matches...)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no content files found")
	}
	sort.Sort(natural.StringSlice(names))

	var lessons []*domain.Lesson
	var projects []*domain.Project
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		var f file
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path.Base(name), err)
		}
		lessons = append(lessons, f.Lessons...)
		projects = append(projects, f.Projects...)
	}

	return New(lessons, projects)
}

// New builds a catalog from already decoded content and validates it.
func New(lessons []*domain.Lesson, projects []*domain.Project) (*Catalog, error) {
	c := &Catalog{
		index: map[domain.ContentKind]map[string]*domain.Entry{
			domain.KindLesson:  {},
			domain.KindProject: {},
		},
		lessonDocs:  make(map[string]*domain.Lesson, len(lessons)),
		projectDocs: make(map[string]*domain.Project, len(projects)),
	}

	var errs error
	for _, l := range lessons {
		if l == nil {
			continue
		}
		if err := c.add(l.Entry()); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		c.lessonDocs[l.Slug] = l
	}
	for _, p := range projects {
		if p == nil {
			continue
		}
		if err := c.add(p.Entry()); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		c.projectDocs[p.Slug] = p
	}
	if errs != nil {
		return nil, fmt.Errorf("invalid catalog: %w", errs)
	}

	sortEntries(c.lessons)
	sortEntries(c.projects)

	for _, warning := range Lint(c) {
		slog.Warn("Content check will never pass", "error", warning)
	}
	return c, nil
}

func (c *Catalog) add(e *domain.Entry) error {
	errs := validateEntry(e)
	if _, dup := c.index[e.Kind][e.Slug]; dup && e.Slug != "" {
		errs = multierr.Append(errs, fmt.Errorf("%s %q: duplicate slug", e.Kind, e.Slug))
	}
	if errs != nil {
		return errs
	}
	c.index[e.Kind][e.Slug] = e
	if e.Kind == domain.KindLesson {
		c.lessons = append(c.lessons, e)
	} else {
		c.projects = append(c.projects, e)
	}
	return nil
}

func sortEntries(entries []*domain.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Order != entries[j].Order {
			return entries[i].Order < entries[j].Order
		}
		return natural.Less(entries[i].Slug, entries[j].Slug)
	})
}

// Lessons returns all lessons in display order.
func (c *Catalog) Lessons() []*domain.Entry { return c.lessons }

// Projects returns all projects in display order.
func (c *Catalog) Projects() []*domain.Entry { return c.projects }

// Entries returns the ordered collection of the given kind.
func (c *Catalog) Entries(kind domain.ContentKind) []*domain.Entry {
	if kind == domain.KindProject {
		return c.projects
	}
	return c.lessons
}

// Entry looks up a lesson or project by slug.
func (c *Catalog) Entry(kind domain.ContentKind, slug string) (*domain.Entry, error) {
	e, ok := c.index[kind][slug]
	if !ok {
		return nil, fmt.Errorf("%s %q: %w", kind, slug, ErrNotFound)
	}
	return e, nil
}

// Lesson returns the full lesson document.
func (c *Catalog) Lesson(slug string) (*domain.Lesson, error) {
	l, ok := c.lessonDocs[slug]
	if !ok {
		return nil, fmt.Errorf("lesson %q: %w", slug, ErrNotFound)
	}
	return l, nil
}

// Project returns the full project document.
func (c *Catalog) Project(slug string) (*domain.Project, error) {
	p, ok := c.projectDocs[slug]
	if !ok {
		return nil, fmt.Errorf("project %q: %w", slug, ErrNotFound)
	}
	return p, nil
}

// PrevNext returns the neighbors of slug in display order. Either may be nil.
func (c *Catalog) PrevNext(kind domain.ContentKind, slug string) (prev, next *domain.Entry, err error) {
	entries := c.Entries(kind)
	for i, e := range entries {
		if e.Slug != slug {
			continue
		}
		if i > 0 {
			prev = entries[i-1]
		}
		if i < len(entries)-1 {
			next = entries[i+1]
		}
		return prev, next, nil
	}
	return nil, nil, fmt.Errorf("%s %q: %w", kind, slug, ErrNotFound)
}

// Lint reports checks whose pattern can never match. These are content bugs,
// not load errors: such a challenge simply stays unsolved.
func Lint(c *Catalog) []error {
	var warnings []error
	for _, entries := range [][]*domain.Entry{c.lessons, c.projects} {
		for _, e := range entries {
			for _, ch := range e.Challenges {
				for _, chk := range ch.Checks {
					if _, err := evaluator.Compile(chk, 0); err != nil {
						warnings = append(warnings, fmt.Errorf("%s %q challenge %q: %w", e.Kind, e.Slug, ch.ID, err))
					}
				}
			}
		}
	}
	return warnings
}
