package store

import (
	"context"

	"pocketbook/internal/core"
	"pocketbook/internal/log"
)

// DefaultCategories is the built-in set seeded on first run.
func DefaultCategories() []core.Category {
	return []core.Category{
		{ID: "1", Name: "Shopping", Icon: "cart"},
		{ID: "2", Name: "Food", Icon: "fast-food"},
		{ID: "3", Name: "Transport", Icon: "bus"},
		{ID: "4", Name: "Health", Icon: "medkit"},
		{ID: "5", Name: "Bills", Icon: "receipt"},
		{ID: "6", Name: "Entertainment", Icon: "film"},
		{ID: "7", Name: "Education", Icon: "school"},
		{ID: "8", Name: "Other", Icon: "grid"},
	}
}

// AddCategory appends a custom category. Names are not checked for
// duplicates.
func (s *Store) AddCategory(ctx context.Context, name, icon string) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := core.Category{
		ID:       s.newID(s.now()),
		Name:     name,
		Icon:     icon,
		IsCustom: true,
	}
	s.categories = append(s.categories, c)

	s.logger.DebugContext(ctx, "Category added",
		log.FieldID, c.ID, log.FieldCategory, c.Name)
	return c, s.persistCategories(ctx)
}

// DeleteCategory removes a custom category. Built-ins are refused with
// core.ErrProtectedCategory; unknown ids are ignored. Transactions that used
// the name are left as they are.
func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := -1
	for j := range s.categories {
		if s.categories[j].ID == id {
			i = j
			break
		}
	}
	if i < 0 {
		return nil
	}
	if !s.categories[i].IsCustom {
		s.logger.WarnContext(ctx, "Refused to delete built-in category",
			log.FieldID, id, log.FieldCategory, s.categories[i].Name)
		return core.ErrProtectedCategory
	}

	s.categories = append(s.categories[:i:i], s.categories[i+1:]...)
	return s.persistCategories(ctx)
}
