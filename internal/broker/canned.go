package broker

import (
	"strings"

	"promptcoach/internal/models"
)

type cannedEntry struct {
	keywords []string
	response string
}

type cannedPartition struct {
	entries  []cannedEntry
	fallback string
}

// CannedTable maps a language to topic-matched scripted answers. It is read-only after construction.
type CannedTable struct {
	partitions map[models.Language]cannedPartition
}

// NewCannedTable returns the built-in bilingual table.
func NewCannedTable() *CannedTable {
	return &CannedTable{partitions: map[models.Language]cannedPartition{
		models.LanguageEN: {
			entries: []cannedEntry{
				{
					keywords: []string{"hello", "hi ", "hey", "good morning", "good afternoon"},
					response: "Hello! I'm your learning assistant. Ask me anything about writing prompts for AI tools and I'll help you improve them.",
				},
				{
					keywords: []string{"what is a prompt", "prompt"},
					response: "A prompt is the instruction you give an AI model. Good prompts state the task, give context about the audience, and say what format you expect. Try: \"Explain photosynthesis to a 12-year-old in three short bullet points.\"",
				},
				{
					keywords: []string{"example", "sample"},
					response: "Compare \"write about dogs\" with \"Write a 100-word paragraph for primary school students describing how dogs help people, using simple words.\" The second one sets length, audience and purpose.",
				},
				{
					keywords: []string{"image", "picture", "draw"},
					response: "To describe an image well, mention the subject, the setting, the style and the mood. For example: \"A watercolor illustration of a lighthouse at sunset, calm sea, warm colors.\"",
				},
				{
					keywords: []string{"ethic", "safe", "bias", "privacy"},
					response: "Use AI responsibly: never share personal data in a prompt, check facts the model gives you, and remember that models can reflect biases present in their training data.",
				},
				{
					keywords: []string{"artificial intelligence", " ai ", "chatgpt", "model"},
					response: "Artificial intelligence models learn patterns from large amounts of text. They predict useful answers, but they do not truly understand, so clear prompts and careful review matter.",
				},
			},
			fallback: "That's an interesting question! Remember that a good prompt is clear, gives context and specifies the format you want. Explore the learning modules to practice more.",
		},
		models.LanguageES: {
			entries: []cannedEntry{
				{
					keywords: []string{"hola", "buenos días", "buenas tardes", "buenas noches", "saludos"},
					response: "¡Hola! Soy tu asistente de aprendizaje. Pregúntame lo que quieras sobre cómo escribir prompts para herramientas de IA y te ayudaré a mejorarlos.",
				},
				{
					keywords: []string{"qué es un prompt", "que es un prompt", "prompt"},
					response: "Un prompt es la instrucción que le das a un modelo de IA. Un buen prompt indica la tarea, da contexto sobre el público y dice qué formato esperas. Prueba: \"Explica la fotosíntesis a un niño de 12 años en tres viñetas cortas.\"",
				},
				{
					keywords: []string{"ejemplo", "muestra"},
					response: "Compara \"escribe sobre perros\" con \"Escribe un párrafo de 100 palabras para alumnos de primaria que describa cómo los perros ayudan a las personas, con palabras sencillas.\" El segundo fija extensión, público y propósito.",
				},
				{
					keywords: []string{"imagen", "dibujo", "foto"},
					response: "Para describir bien una imagen, menciona el sujeto, el lugar, el estilo y el ambiente. Por ejemplo: \"Una ilustración en acuarela de un faro al atardecer, mar en calma, colores cálidos.\"",
				},
				{
					keywords: []string{"ética", "etica", "seguridad", "sesgo", "privacidad"},
					response: "Usa la IA con responsabilidad: nunca compartas datos personales en un prompt, verifica los datos que te da el modelo y recuerda que los modelos pueden reflejar sesgos de sus datos de entrenamiento.",
				},
				{
					keywords: []string{"inteligencia artificial", " ia ", "chatgpt", "modelo"},
					response: "Los modelos de inteligencia artificial aprenden patrones a partir de grandes cantidades de texto. Predicen respuestas útiles, pero no comprenden de verdad; por eso importan los prompts claros y la revisión cuidadosa.",
				},
			},
			fallback: "¡Qué buena pregunta! Recuerda que un buen prompt es claro, da contexto y especifica el formato que quieres. Explora los módulos de aprendizaje para practicar más.",
		},
	}}
}

// Lookup returns the first topic-matched answer for text, or the language's generic default.
func (t *CannedTable) Lookup(text string, lang models.Language) string {
	part, ok := t.partitions[lang]
	if !ok {
		part = t.partitions[models.LanguageES]
	}
	// pad so that word-bounded keywords such as " ai " match at the edges
	lower := " " + strings.ToLower(text) + " "
	for _, entry := range part.entries {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.response
			}
		}
	}
	return part.fallback
}

// Default returns the generic answer of a language.
func (t *CannedTable) Default(lang models.Language) string {
	part, ok := t.partitions[lang]
	if !ok {
		part = t.partitions[models.LanguageES]
	}
	return part.fallback
}
