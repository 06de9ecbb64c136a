package catalog

import (
	"fmt"

	"github.com/ashureev/codeando/internal/domain"
	"github.com/gosimple/slug"
	"go.uber.org/multierr"
)

func validateEntry(e *domain.Entry) error {
	var errs error
	switch {
	case e.Slug == "":
		errs = multierr.Append(errs, fmt.Errorf("%s %q: empty slug", e.Kind, e.Title))
	case !slug.IsSlug(e.Slug):
		errs = multierr.Append(errs, fmt.Errorf("%s %q: slug is not url-safe", e.Kind, e.Slug))
	}
	if e.Title == "" {
		errs = multierr.Append(errs, fmt.Errorf("%s %q: empty title", e.Kind, e.Slug))
	}

	seen := make(map[string]bool, len(e.Challenges))
	for i, ch := range e.Challenges {
		if ch.ID == "" {
			errs = multierr.Append(errs, fmt.Errorf("%s %q: challenge #%d has no id", e.Kind, e.Slug, i+1))
			continue
		}
		if seen[ch.ID] {
			errs = multierr.Append(errs, fmt.Errorf("%s %q: duplicate challenge id %q", e.Kind, e.Slug, ch.ID))
		}
		seen[ch.ID] = true
		for j, chk := range ch.Checks {
			if chk.Kind == domain.CheckUnknown {
				errs = multierr.Append(errs, fmt.Errorf("%s %q challenge %q: check #%d has no type", e.Kind, e.Slug, ch.ID, j+1))
			}
		}
	}
	return errs
}
