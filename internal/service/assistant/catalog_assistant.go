package assistant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"promptcoach/internal/models"
)

// ListModules returns the learning modules of a language in display order.
func (s *Service) ListModules(ctx context.Context, lang models.Language) ([]models.Module, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, description, language, position FROM modules WHERE language = ? ORDER BY position, id`,
		lang,
	)
	if err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}
	defer rows.Close()

	modules := make([]models.Module, 0)
	for rows.Next() {
		var m models.Module
		if err := rows.Scan(&m.ID, &m.Title, &m.Description, &m.Language, &m.Position); err != nil {
			return nil, fmt.Errorf("scan module: %w", err)
		}
		modules = append(modules, m)
	}
	return modules, rows.Err()
}

// GetModule returns one module; sql.ErrNoRows when it does not exist.
func (s *Service) GetModule(ctx context.Context, id int64) (*models.Module, error) {
	var m models.Module
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, description, language, position FROM modules WHERE id = ?`, id,
	).Scan(&m.ID, &m.Title, &m.Description, &m.Language, &m.Position)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get module: %w", err)
	}
	return &m, nil
}

// ListLessons returns the lessons of a module without their content.
func (s *Service) ListLessons(ctx context.Context, moduleID int64) ([]models.Lesson, error) {
	if _, err := s.GetModule(ctx, moduleID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, module_id, title, position FROM lessons WHERE module_id = ? ORDER BY position, id`,
		moduleID,
	)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	defer rows.Close()

	lessons := make([]models.Lesson, 0)
	for rows.Next() {
		var l models.Lesson
		if err := rows.Scan(&l.ID, &l.ModuleID, &l.Title, &l.Position); err != nil {
			return nil, fmt.Errorf("scan lesson: %w", err)
		}
		lessons = append(lessons, l)
	}
	return lessons, rows.Err()
}

// GetLesson returns one lesson of a module including its content.
func (s *Service) GetLesson(ctx context.Context, moduleID, lessonID int64) (*models.Lesson, error) {
	var l models.Lesson
	err := s.db.QueryRowContext(ctx,
		`SELECT id, module_id, title, content, position FROM lessons WHERE id = ? AND module_id = ?`,
		lessonID, moduleID,
	).Scan(&l.ID, &l.ModuleID, &l.Title, &l.Content, &l.Position)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get lesson: %w", err)
	}
	return &l, nil
}

func (s *Service) ListResources(ctx context.Context, lang models.Language) ([]models.Resource, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, description, type, file_name, language FROM resources WHERE language = ? ORDER BY id`,
		lang,
	)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	defer rows.Close()

	resources := make([]models.Resource, 0)
	for rows.Next() {
		var r models.Resource
		if err := rows.Scan(&r.ID, &r.Title, &r.Description, &r.Type, &r.FileName, &r.Language); err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		resources = append(resources, r)
	}
	return resources, rows.Err()
}

func (s *Service) GetResource(ctx context.Context, id int64) (*models.Resource, error) {
	var r models.Resource
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, description, type, file_name, language FROM resources WHERE id = ?`, id,
	).Scan(&r.ID, &r.Title, &r.Description, &r.Type, &r.FileName, &r.Language)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get resource: %w", err)
	}
	return &r, nil
}
