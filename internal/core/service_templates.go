package core

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CreateTemplate validates, compiles, and persists a new template. Missing
// IDs on the template, its columns, and its rule bindings are assigned here.
func (s *Service) CreateTemplate(ctx context.Context, t Template) (Template, error) {
	if strings.TrimSpace(t.Name) == "" {
		return Template{}, fmt.Errorf("%w: template name is required", ErrInvalidRuleConfiguration)
	}

	assignTemplateIDs(&t)
	if _, err := CompileTemplate(t, s.catalog); err != nil {
		return Template{}, err
	}

	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	if err := s.store.CreateTemplate(ctx, t); err != nil {
		return Template{}, fmt.Errorf("create template: %w", err)
	}
	return t, nil
}

// UpdateTemplate replaces a template's definition. Past runs are unaffected:
// each run evaluated the template as it stood when the run started.
func (s *Service) UpdateTemplate(ctx context.Context, t Template) (Template, error) {
	existing, err := s.store.GetTemplate(ctx, t.ID)
	if err != nil {
		return Template{}, err
	}

	assignTemplateIDs(&t)
	if _, err := CompileTemplate(t, s.catalog); err != nil {
		return Template{}, err
	}

	t.Owner = existing.Owner
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateTemplate(ctx, t); err != nil {
		return Template{}, fmt.Errorf("update template: %w", err)
	}
	return t, nil
}

// DeleteTemplate removes a template. Runs referencing it keep their stored
// verdicts; they simply can no longer be re-validated.
func (s *Service) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	return s.store.DeleteTemplate(ctx, id)
}

// GetTemplate returns a template by ID.
func (s *Service) GetTemplate(ctx context.Context, id uuid.UUID) (Template, error) {
	return s.store.GetTemplate(ctx, id)
}

// ListTemplates returns the owner's templates.
func (s *Service) ListTemplates(ctx context.Context, owner string) ([]Template, error) {
	return s.store.ListTemplates(ctx, owner)
}

// SuggestTemplate ingests a file and proposes a template from the detected
// column types. The suggestion is not persisted; the caller reviews it and
// calls CreateTemplate.
func (s *Service) SuggestTemplate(name, fileName string, r io.Reader, sheet string) (Template, error) {
	grid, err := s.ingest.Read(fileName, r, sheet)
	if err != nil {
		return Template{}, err
	}

	t := Template{Name: name}
	for i, sc := range DetectColumns(grid) {
		key, params := sc.RuleKey, sc.Params
		if hasTextPrefix(sc.Name) {
			key, params = RuleText, nil
		}
		col := Column{
			Name:     sc.Name,
			Position: i,
			Rules: []ColumnRule{
				{RuleKey: RuleRequired, Position: 0},
				{RuleKey: key, Params: params, Position: 1},
			},
		}
		t.Columns = append(t.Columns, col)
	}
	assignTemplateIDs(&t)
	return t, nil
}

// textPrefixes marks free-form columns that detection routinely misreads,
// such as a name column whose sampled values happen to be alphanumeric.
var textPrefixes = []string{"name", "address", "phone", "username", "status", "period"}

func hasTextPrefix(column string) bool {
	lower := strings.ToLower(strings.TrimSpace(column))
	for _, p := range textPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

func assignTemplateIDs(t *Template) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	for i := range t.Columns {
		if t.Columns[i].ID == uuid.Nil {
			t.Columns[i].ID = uuid.New()
		}
		for j := range t.Columns[i].Rules {
			if t.Columns[i].Rules[j].ID == uuid.Nil {
				t.Columns[i].Rules[j].ID = uuid.New()
			}
		}
	}
}
