// Package classifier tags uploaded case documents with their role in the brief
// using fixed keyword heuristics. Everything here is pure and deterministic.
//
// Keywords match whole words only: "contesta" does not match "incontestável".
// Multi-word keywords match consecutive words, ignoring punctuation between them.
package classifier

import (
	"strings"
	"unicode"

	"github.com/Lllllllleong/legaldraftflow/internal/models"
)

// PetitionKeywords identify the initiating pleading.
var PetitionKeywords = []string{
	"petição inicial",
	"peticao inicial",
	"exordial",
	"vem propor",
	"vem, respeitosamente, propor",
	"ajuizar a presente",
	"inicial",
}

// RebuttalTargetKeywords identify the defensive filing the brief answers.
var RebuttalTargetKeywords = []string{
	"contestação",
	"contestacao",
	"contesta",
	"peça de defesa",
	"peca de defesa",
	"apresentar defesa",
	"apresenta defesa",
	"apresenta sua defesa",
	"resposta do réu",
	"resposta do reu",
	"apresentar resposta",
	"impugnação",
	"impugnacao",
	"reconvenção",
	"reconvencao",
}

// EvidenceKeywords identify supporting exhibits.
var EvidenceKeywords = []string{
	"comprovante",
	"recibo",
	"nota fiscal",
	"laudo",
	"extrato",
	"boletim de ocorrência",
	"boletim de ocorrencia",
	"contrato",
	"declaração",
	"declaracao",
	"fatura",
}

// Result is the classifier output.
type Result struct {
	Documents         []models.Document
	HasRebuttalTarget bool
}

// Classify tags every document and reports whether a rebuttal target is present.
// The input slice is not modified.
func Classify(documents []models.Document) Result {
	res := Result{Documents: make([]models.Document, 0, len(documents))}
	for _, doc := range documents {
		doc.RoleTags = Roles(doc)
		if doc.HasRole(models.RoleRebuttalTarget) {
			res.HasRebuttalTarget = true
		}
		res.Documents = append(res.Documents, doc)
	}
	return res
}

// Roles returns the sorted role tags for a single document.
func Roles(doc models.Document) []models.Role {
	text := words(doc.Name + "\n" + doc.Content)

	var roles []models.Role
	if containsAny(text, PetitionKeywords) {
		roles = append(roles, models.RolePetition)
	}
	if containsAny(text, RebuttalTargetKeywords) {
		roles = append(roles, models.RoleRebuttalTarget)
	}
	if containsAny(text, EvidenceKeywords) {
		roles = append(roles, models.RoleEvidence)
	}
	if len(roles) == 0 {
		roles = append(roles, models.RoleOther)
	}
	return models.SortRoles(roles)
}

// Describe returns a short human label for a document's role tags.
func Describe(roles []models.Role) string {
	has := func(r models.Role) bool {
		for _, x := range roles {
			if x == r {
				return true
			}
		}
		return false
	}
	switch {
	case has(models.RoleRebuttalTarget):
		return "Contestação / peça de defesa"
	case has(models.RolePetition):
		return "Petição inicial"
	case has(models.RoleEvidence):
		return "Documento probatório"
	default:
		return "Documento não identificado"
	}
}

// words lowercases text and splits it on anything that is not a letter or digit.
func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func containsAny(text []string, keywords []string) bool {
	for _, kw := range keywords {
		if containsPhrase(text, words(kw)) {
			return true
		}
	}
	return false
}

func containsPhrase(text, phrase []string) bool {
	if len(phrase) == 0 {
		return false
	}
outer:
	for i := 0; i+len(phrase) <= len(text); i++ {
		for j, w := range phrase {
			if text[i+j] != w {
				continue outer
			}
		}
		return true
	}
	return false
}
