package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"promptcoach/internal/models"
)

type seedLesson struct {
	title   string
	content string
}

type seedModule struct {
	title       string
	description string
	language    models.Language
	lessons     []seedLesson
}

var catalogModules = []seedModule{
	{
		title:       "Introduction to prompt design",
		description: "What a prompt is and why the way you ask changes what the AI answers.",
		language:    models.LanguageEN,
		lessons: []seedLesson{
			{"What is a prompt?", "A prompt is the instruction you give to an AI model. Clear prompts state the task, the audience and the expected format."},
			{"Context and role", "Tell the model who it should act as and what it needs to know. \"You are a biology teacher explaining photosynthesis to 12-year-olds\" beats \"explain photosynthesis\"."},
			{"Output format", "Ask for the shape you need: a list, a table, three bullet points, fewer than 100 words."},
		},
	},
	{
		title:       "Prompting techniques",
		description: "Examples, step-by-step reasoning and iteration.",
		language:    models.LanguageEN,
		lessons: []seedLesson{
			{"Few-shot examples", "Show the model one or two examples of the answer you expect before asking your question."},
			{"Step by step", "Ask the model to reason step by step for problems that need several stages."},
			{"Iterate and refine", "Treat the first answer as a draft: point out what is missing and ask again."},
		},
	},
	{
		title:       "Introducción al diseño de prompts",
		description: "Qué es un prompt y por qué la forma de preguntar cambia la respuesta de la IA.",
		language:    models.LanguageES,
		lessons: []seedLesson{
			{"¿Qué es un prompt?", "Un prompt es la instrucción que le das a un modelo de IA. Un buen prompt indica la tarea, el público y el formato esperado."},
			{"Contexto y rol", "Dile al modelo qué papel debe asumir y qué necesita saber. \"Eres un profesor de biología que explica la fotosíntesis a niños de 12 años\" funciona mejor que \"explica la fotosíntesis\"."},
			{"Formato de salida", "Pide la forma que necesitas: una lista, una tabla, tres viñetas, menos de 100 palabras."},
		},
	},
	{
		title:       "Técnicas de prompting",
		description: "Ejemplos, razonamiento paso a paso e iteración.",
		language:    models.LanguageES,
		lessons: []seedLesson{
			{"Ejemplos (few-shot)", "Muestra al modelo uno o dos ejemplos de la respuesta que esperas antes de hacer tu pregunta."},
			{"Paso a paso", "Pide al modelo que razone paso a paso en problemas que requieren varias etapas."},
			{"Iterar y refinar", "Toma la primera respuesta como un borrador: señala lo que falta y vuelve a preguntar."},
		},
	},
}

var catalogResources = []models.Resource{
	{Title: "Prompt Design Guide", Description: "A practical guide to writing effective prompts.", Type: "pdf", FileName: "guide.pdf", Language: models.LanguageEN},
	{Title: "Exercise Templates", Description: "Templates to practise prompt writing.", Type: "xlsx", FileName: "templates.xlsx", Language: models.LanguageEN},
	{Title: "Prompt Examples", Description: "Good and bad prompts side by side.", Type: "pdf", FileName: "examples.pdf", Language: models.LanguageEN},
	{Title: "AI Glossary", Description: "Key artificial intelligence terms.", Type: "pdf", FileName: "glossary.pdf", Language: models.LanguageEN},
	{Title: "Guía de diseño de prompts", Description: "Una guía práctica para escribir prompts efectivos.", Type: "pdf", FileName: "guide.pdf", Language: models.LanguageES},
	{Title: "Plantillas de ejercicios", Description: "Plantillas para practicar la escritura de prompts.", Type: "xlsx", FileName: "templates.xlsx", Language: models.LanguageES},
	{Title: "Ejemplos de prompts", Description: "Prompts buenos y malos lado a lado.", Type: "pdf", FileName: "examples.pdf", Language: models.LanguageES},
	{Title: "Glosario de IA", Description: "Términos clave de inteligencia artificial.", Type: "pdf", FileName: "glossary.pdf", Language: models.LanguageES},
}

var placeholderFiles = map[string]string{
	"guide.pdf":      "Placeholder for Prompt Design Guide",
	"templates.xlsx": "Placeholder for Exercise Templates",
	"examples.pdf":   "Placeholder for Prompt Examples",
	"glossary.pdf":   "Placeholder for AI Glossary",
}

// SeedCatalog inserts the bilingual modules, lessons and resources when the catalog is empty.
func SeedCatalog(db *sql.DB) error {
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM modules`).Scan(&count); err != nil {
		return fmt.Errorf("count modules: %w", err)
	}
	if count > 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	for i, m := range catalogModules {
		res, err := tx.Exec(
			`INSERT INTO modules (title, description, language, position) VALUES (?, ?, ?, ?)`,
			m.title, m.description, m.language, i%2+1,
		)
		if err != nil {
			return fmt.Errorf("seed module %q: %w", m.title, err)
		}
		moduleID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("module id: %w", err)
		}
		for j, l := range m.lessons {
			if _, err := tx.Exec(
				`INSERT INTO lessons (module_id, title, content, position) VALUES (?, ?, ?, ?)`,
				moduleID, l.title, l.content, j+1,
			); err != nil {
				return fmt.Errorf("seed lesson %q: %w", l.title, err)
			}
		}
	}
	for _, r := range catalogResources {
		if _, err := tx.Exec(
			`INSERT INTO resources (title, description, type, file_name, language) VALUES (?, ?, ?, ?, ?)`,
			r.Title, r.Description, r.Type, r.FileName, r.Language,
		); err != nil {
			return fmt.Errorf("seed resource %q: %w", r.Title, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	return nil
}

// EnsureResourceFiles creates the resources directory and placeholder documents that are missing.
func EnsureResourceFiles(dir string) error {
	if dir == "" {
		return fmt.Errorf("resources dir required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create resources dir: %w", err)
	}
	for name, content := range placeholderFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write placeholder %s: %w", name, err)
		}
	}
	return nil
}
