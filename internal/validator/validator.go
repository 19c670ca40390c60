// Package validator checks generated section text against its contract.
// Length and heading rules block advancement; the naming-case rule only warns.
//
// Length is measured in characters (runes), four per approximate token. The
// naming-case rule only looks for lowercase "x da y" style sequences joined by a
// Portuguese connector (da, de, do, das, dos); other lowercase names go unreported.
package validator

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/Lllllllleong/legaldraftflow/internal/models"
)

// Message prefixes, stable so callers can match on them.
const (
	MsgTooShort       = "texto muito curto"
	MsgTooLong        = "texto muito longo"
	MsgMissingHeading = "título da seção ausente"
	MsgLowercaseNames = "possíveis nomes próprios em minúsculas"
)

const (
	minRatio        = 0.8
	maxRatio        = 1.2
	charsPerToken   = 4
	maxNameExamples = 5
)

var lowercaseNameRegex = regexp.MustCompile(`(?:^|[\s,.;:(])(\p{Ll}{3,})\s+(da|de|do|das|dos)\s+(\p{Ll}{3,})`)

// commonWords are frequent legal nouns that legitimately appear in
// "x de y" phrases and must not be reported as names.
var commonWords = map[string]bool{
	"ação": true, "acao": true, "pedido": true, "pedidos": true, "prova": true, "provas": true,
	"valor": true, "contrato": true, "data": true, "direito": true, "código": true, "codigo": true,
	"processo": true, "termos": true, "forma": true, "parte": true, "partes": true, "prazo": true,
	"juízo": true, "ônus": true, "danos": true, "pagamento": true, "cobrança": true, "réplica": true,
	"fatos": true, "mérito": true, "teses": true, "razão": true, "caso": true, "título": true,
	"falta": true, "ausência": true, "princípio": true, "lei": true, "artigo": true, "inversão": true,
	"indenização": true, "existência": true, "relação": true, "consumo": true, "defesa": true,
	"contestação": true, "conta": true, "produção": true, "documentos": true, "sentença": true,
}

// Result is the validator output. OK is true iff Errors is empty.
type Result struct {
	OK       bool
	Errors   []string
	Warnings []string
}

// ApproxTokens estimates the token count of text, rounded down.
func ApproxTokens(text string) int {
	return utf8.RuneCountInString(text) / charsPerToken
}

func exactTokens(text string) float64 {
	return float64(utf8.RuneCountInString(text)) / charsPerToken
}

// Validate applies the length, heading and naming-case rules in that order.
func Validate(text string, section models.SectionContract) Result {
	var res Result

	tokens := ApproxTokens(text)
	if exact := exactTokens(text); exact < minRatio*float64(section.MinTokens) {
		res.Errors = append(res.Errors, fmt.Sprintf("%s: ~%d tokens, mínimo esperado %d", MsgTooShort, tokens, section.MinTokens))
	} else if exact > maxRatio*float64(section.MaxTokens) {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s: ~%d tokens, máximo esperado %d", MsgTooLong, tokens, section.MaxTokens))
	}

	if !strings.Contains(text, section.Title) {
		res.Errors = append(res.Errors, fmt.Sprintf("%s: \"%s\"", MsgMissingHeading, section.Title))
	}

	if names := lowercaseNames(text); len(names) > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %s", MsgLowercaseNames, strings.Join(names, ", ")))
	}

	res.OK = len(res.Errors) == 0
	return res
}

func lowercaseNames(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range lowercaseNameRegex.FindAllStringSubmatch(text, -1) {
		first, last := m[1], m[3]
		if commonWords[first] || commonWords[last] {
			continue
		}
		candidate := first + " " + m[2] + " " + last
		if seen[candidate] {
			continue
		}
		seen[candidate] = true
		out = append(out, candidate)
		if len(out) == maxNameExamples {
			break
		}
	}
	return out
}
