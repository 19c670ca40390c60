// Package prompt assembles the single generation request for one section.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Lllllllleong/legaldraftflow/internal/facts"
	"github.com/Lllllllleong/legaldraftflow/internal/models"
)

// ErrNoDocuments is returned when there is no source material to draft from.
var ErrNoDocuments = errors.New("prompt: no documents supplied")

// SystemPrompt frames the drafting model for every section.
const SystemPrompt = "Você é um advogado brasileiro experiente redigindo uma réplica à contestação. Escreva em português jurídico formal, com precisão técnica. Baseie-se exclusivamente nos documentos fornecidos e nunca invente fatos, valores, datas ou nomes."

// outputTokenHeadroom leaves room above maxTokens so the validator, not the
// backend, decides what is too long.
const outputTokenHeadroom = 1.5

// Compose builds the generation request for section from the classified
// documents and the fact digest.
func Compose(section models.SectionContract, documents []models.Document, summary facts.Summary) (models.GenerationRequest, error) {
	if len(documents) == 0 {
		return models.GenerationRequest{}, ErrNoDocuments
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Redija a seção \"%s\" da réplica.\n\n", section.Title))
	sb.WriteString(fmt.Sprintf("Descrição da seção: %s\n", section.Description))
	if len(section.RequiredElements) > 0 {
		sb.WriteString("Elementos obrigatórios:\n")
		for i, el := range section.RequiredElements {
			sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, el))
		}
	}
	sb.WriteString(fmt.Sprintf("Extensão: entre %d e %d tokens (aproximadamente %d a %d caracteres).\n",
		section.MinTokens, section.MaxTokens, section.MinTokens*4, section.MaxTokens*4))
	sb.WriteString(fmt.Sprintf("A seção DEVE começar com o título exato \"%s\".\n", section.Title))
	sb.WriteString("Utilize SOMENTE as informações dos documentos abaixo. Não use conhecimento externo sobre o caso.\n")
	sb.WriteString("Grafe nomes próprios de pessoas e empresas com iniciais maiúsculas.\n\n")

	sb.WriteString("=== DOCUMENTOS DO PROCESSO ===\n")
	for i, doc := range documents {
		sb.WriteString(fmt.Sprintf("\n--- Documento %d: %s | tipo: %s | papéis: %s ---\n",
			i+1, doc.Name, fileTypeLabel(doc.FileType), roleLabel(doc.RoleTags)))
		sb.WriteString(strings.TrimSpace(doc.Content))
		sb.WriteString("\n")
	}

	if digest := summary.String(); digest != "" {
		sb.WriteString("\n=== FATOS EXTRAÍDOS ===\n")
		sb.WriteString(digest)
	}

	return models.GenerationRequest{
		SectionID:       section.ID,
		SystemPrompt:    SystemPrompt,
		Prompt:          sb.String(),
		MaxOutputTokens: int(float64(section.MaxTokens) * outputTokenHeadroom),
	}, nil
}

func fileTypeLabel(fileType string) string {
	if fileType == "" {
		return "desconhecido"
	}
	return fileType
}

func roleLabel(roles []models.Role) string {
	if len(roles) == 0 {
		return string(models.RoleOther)
	}
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, ", ")
}
