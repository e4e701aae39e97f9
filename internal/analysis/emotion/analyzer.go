// Package emotion suggests an intake emotion label from the free text a
// patient types before starting a chat. A keyword heuristic is enough
// here: the suggestion only pre-selects a button, the patient always
// confirms.
package emotion

import "strings"

// Label is one of the intake emotions offered at chat creation.
type Label string

const (
	Ansioso        Label = "Ansioso"
	Triste         Label = "Triste"
	Sobrecarregado Label = "Sobrecarregado"
	Confuso        Label = "Confuso"
	Desanimado     Label = "Desanimado"
	Irritado       Label = "Irritado"
	Vazio          Label = "Vazio"
	Tranquilo      Label = "Tranquilo"
)

// Labels lists every intake emotion in presentation order.
func Labels() []Label {
	return []Label{Ansioso, Triste, Sobrecarregado, Confuso, Desanimado, Irritado, Vazio, Tranquilo}
}

// Decision is a suggestion with its keyword score; Score zero means the
// text carried no recognizable signal.
type Decision struct {
	Emotion Label `json:"emotion"`
	Score   int   `json:"score"`
}

var keywordBuckets = map[Label][]string{
	Ansioso: {
		"ansios", "ansiedade", "nervos", "preocupa", "medo", "pânico", "panico",
		"coração acelerado", "aflito", "aflita", "angústia", "angustia", "inquiet",
	},
	Triste: {
		"triste", "tristeza", "chorar", "chorando", "chorei", "magoad", "perdi",
		"luto", "saudade", "sofrendo", "dói", "doi",
	},
	Sobrecarregado: {
		"sobrecarregad", "cansad", "exaust", "esgotad", "não aguento", "nao aguento",
		"demais pra mim", "muita coisa", "pressão", "pressao", "sem tempo",
	},
	Confuso: {
		"confus", "perdid", "não sei", "nao sei", "não entendo", "nao entendo",
		"dúvida", "duvida", "indecis",
	},
	Desanimado: {
		"desanimad", "desmotivad", "sem vontade", "sem energia", "sem ânimo",
		"sem animo", "nada faz sentido", "pra que", "desisto",
	},
	Irritado: {
		"irritad", "raiva", "ódio", "odio", "bravo", "brava", "estress",
		"furios", "injustiça", "injustica", "explodir",
	},
	Vazio: {
		"vazio", "vazia", "nada sinto", "não sinto", "nao sinto", "indiferente",
		"anestesiad", "oco", "sozinho", "sozinha", "solidão", "solidao",
	},
	Tranquilo: {
		"tranquil", "calm", "bem", "melhor", "aliviad", "em paz", "sereno", "serena",
	},
}

// Suggest scores the text against every bucket and returns the best
// match. Empty or unrecognized text falls back to Ansioso with score
// zero, the most common intake state.
func Suggest(text string) Decision {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return Decision{Emotion: Ansioso, Score: 0}
	}

	scores := make(map[Label]int)
	for label, keywords := range keywordBuckets {
		for _, word := range keywords {
			if strings.Contains(normalized, word) {
				scores[label] += 3
			}
		}
	}

	best := Decision{Emotion: Ansioso, Score: 0}
	for _, label := range Labels() {
		if s := scores[label]; s > best.Score {
			best = Decision{Emotion: label, Score: s}
		}
	}
	return best
}
