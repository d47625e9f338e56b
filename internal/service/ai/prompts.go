package ai

import "promptcoach/internal/models"

var systemPrompts = map[models.Language]string{
	models.LanguageEN: "You are an educational assistant specialized in teaching AI prompt design. " +
		"Provide concise, educational responses about how to create good prompts. " +
		"Responses should be maximum 150 words and appropriate for students.",
	models.LanguageES: "Eres un asistente educativo especializado en enseñar diseño de prompts para IA. " +
		"Proporciona respuestas concisas y educativas sobre cómo crear buenos prompts. " +
		"Las respuestas deben ser de máximo 150 palabras y apropiadas para estudiantes.",
}

// SystemPrompt returns the instruction turn sent before every user message.
func SystemPrompt(lang models.Language) string {
	if p, ok := systemPrompts[lang]; ok {
		return p
	}
	return systemPrompts[models.LanguageES]
}
