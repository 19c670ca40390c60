// Package facts pulls monetary amounts, dates and candidate proper names out of
// case documents to ground section generation. The output is advisory only.
package facts

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Lllllllleong/legaldraftflow/internal/classifier"
	"github.com/Lllllllleong/legaldraftflow/internal/models"
)

const (
	maxPerKind    = 10
	maxNameLength = 60
)

var (
	amountRegex      = regexp.MustCompile(`R\$\s?\d{1,3}(?:\.\d{3})*(?:,\d{2})?`)
	numericDateRegex = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b`)
	longDateRegex    = regexp.MustCompile(`(?i)\b\d{1,2}º? de (?:janeiro|fevereiro|março|marco|abril|maio|junho|julho|agosto|setembro|outubro|novembro|dezembro) de \d{4}\b`)
	nameRegex        = regexp.MustCompile(`\p{Lu}\p{Ll}+(?:\s+(?:(?:da|de|do|das|dos|e)\s+)?\p{Lu}\p{Ll}+){1,3}`)
)

// DocumentFacts are the facts found in one document.
type DocumentFacts struct {
	Name    string
	Kind    string
	Amounts []string
	Dates   []string
	Names   []string
}

// Summary is the digest handed to the prompt composer.
type Summary struct {
	Documents []DocumentFacts
}

// Extract scans every document independently.
func Extract(documents []models.Document) Summary {
	var s Summary
	for _, doc := range documents {
		roles := doc.RoleTags
		if len(roles) == 0 {
			roles = classifier.Roles(doc)
		}
		s.Documents = append(s.Documents, DocumentFacts{
			Name:    doc.Name,
			Kind:    classifier.Describe(roles),
			Amounts: firstUnique(amountRegex.FindAllString(doc.Content, -1), maxPerKind),
			Dates:   firstUnique(append(numericDateRegex.FindAllString(doc.Content, -1), longDateRegex.FindAllString(doc.Content, -1)...), maxPerKind),
			Names:   candidateNames(doc.Content),
		})
	}
	return s
}

// IsEmpty reports whether no fact at all was found.
func (s Summary) IsEmpty() bool {
	for _, d := range s.Documents {
		if len(d.Amounts)+len(d.Dates)+len(d.Names) > 0 {
			return false
		}
	}
	return true
}

// String renders the digest as plain text, one block per document.
func (s Summary) String() string {
	var sb strings.Builder
	for _, d := range s.Documents {
		sb.WriteString(fmt.Sprintf("Documento: %s (%s)\n", d.Name, d.Kind))
		writeList(&sb, "Valores", d.Amounts)
		writeList(&sb, "Datas", d.Dates)
		writeList(&sb, "Nomes", d.Names)
	}
	return sb.String()
}

func writeList(sb *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	sb.WriteString(fmt.Sprintf("  %s: %s\n", label, strings.Join(items, "; ")))
}

func candidateNames(content string) []string {
	var names []string
	for _, m := range nameRegex.FindAllString(content, -1) {
		m = strings.Join(strings.Fields(m), " ")
		if len(m) > maxNameLength {
			continue
		}
		names = append(names, m)
	}
	return firstUnique(names, maxPerKind)
}

func firstUnique(items []string, limit int) []string {
	seen := make(map[string]bool, len(items))
	var out []string
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" || seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
		if len(out) == limit {
			break
		}
	}
	return out
}
