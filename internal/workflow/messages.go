package workflow

import (
	"fmt"
	"strings"

	"github.com/Lllllllleong/legaldraftflow/internal/classifier"
	"github.com/Lllllllleong/legaldraftflow/internal/models"
	"github.com/Lllllllleong/legaldraftflow/internal/validator"
)

// MsgWorkflowComplete answers any input once the brief is finished.
const MsgWorkflowComplete = "A réplica já foi concluída. Todas as seções foram geradas; inicie uma nova sessão para redigir outra peça."

func msgDocumentRequirements(cfg Config) string {
	return fmt.Sprintf("Para redigir a réplica, envie os documentos do processo (máximo de %d arquivos):\n"+
		"  - Contestação da parte ré (obrigatória)\n"+
		"  - Petição inicial\n"+
		"  - Documentos probatórios relevantes (contratos, comprovantes, laudos)", cfg.MaxDocuments)
}

func msgMissingRebuttalTarget(received []models.Document) string {
	var sb strings.Builder
	sb.WriteString("Não identifiquei a contestação entre os documentos enviados. Anexe a contestação da parte ré para continuar.\n")
	sb.WriteString(documentList(received))
	return sb.String()
}

func msgTooManyDocuments(limit, have, sent int) string {
	return fmt.Sprintf("Limite de %d documentos excedido: você já enviou %d e tentou adicionar %d. Remova ou substitua arquivos e envie novamente.", limit, have, sent)
}

func msgEmptySubmission(cfg Config) string {
	return "Nenhum documento válido foi recebido. " + msgDocumentRequirements(cfg)
}

func msgUnnamedDocument() string {
	return "Todos os documentos precisam ter um nome de arquivo. Envie novamente."
}

func msgDocumentsAccepted(docs []models.Document) string {
	return "Documentos recebidos e classificados.\n" + documentList(docs)
}

func msgDocumentsNotExpected() string {
	return "Documentos só podem ser enviados quando solicitados. Para alterar os documentos, responda com o comando de modificação."
}

func msgAwaitingDocuments(cfg Config, pending []models.Document) string {
	if len(pending) == 0 {
		return msgDocumentRequirements(cfg)
	}
	return msgDocumentRequirements(cfg) + "\n" + documentList(pending)
}

func msgSectionPreview(section models.SectionContract, index, total int, cfg Config) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Próxima seção (%d de %d): %s\n", index+1, total, section.Title))
	sb.WriteString(section.Description + "\n")
	if len(section.RequiredElements) > 0 {
		sb.WriteString("Elementos obrigatórios:\n")
		for _, el := range section.RequiredElements {
			sb.WriteString("  - " + el + "\n")
		}
	}
	sb.WriteString(fmt.Sprintf("Extensão esperada: %d a %d tokens.\n", section.MinTokens, section.MaxTokens))
	sb.WriteString(fmt.Sprintf("Responda %s para gerar esta seção ou %s para alterar os documentos.", cfg.ConfirmToken, cfg.ModifyToken))
	return sb.String()
}

func msgModifyDocuments(cfg Config, docs []models.Document) string {
	return "Envie os documentos que deseja adicionar ou substituir (arquivos com o mesmo nome serão substituídos).\n" +
		documentList(docs) + fmt.Sprintf("\nLimite: %d documentos.", cfg.MaxDocuments)
}

func msgGenerationFailed(section models.SectionContract, kind string, cfg Config) string {
	return fmt.Sprintf("Não foi possível gerar a seção \"%s\" (%s). As seções já concluídas foram preservadas. Responda %s para tentar novamente.", section.Title, kind, cfg.ConfirmToken)
}

func msgValidationFailed(section models.SectionContract, errs []string, cfg Config) string {
	return fmt.Sprintf("A seção \"%s\" gerada não atende aos requisitos:\n  - %s\nResponda %s para gerar novamente.", section.Title, strings.Join(errs, "\n  - "), cfg.ConfirmToken)
}

func msgRetryPrompt(section models.SectionContract, lastErrors []string, cfg Config) string {
	msg := fmt.Sprintf("A seção \"%s\" ainda não foi concluída.", section.Title)
	if len(lastErrors) > 0 {
		msg += "\nÚltimos problemas:\n  - " + strings.Join(lastErrors, "\n  - ")
	}
	return msg + fmt.Sprintf("\nResponda %s para gerar novamente.", cfg.ConfirmToken)
}

func msgSectionAccepted(section models.SectionContract, text string) string {
	return fmt.Sprintf("Seção \"%s\" concluída:\n\n%s", section.Title, text)
}

func msgCompletionSummary(sections []models.SectionContract, contents map[string]string) string {
	var sb strings.Builder
	sb.WriteString("Réplica concluída. Seções geradas:\n")
	for i, s := range sections {
		sb.WriteString(fmt.Sprintf("  %d. %s (~%d tokens)\n", i+1, s.Title, validator.ApproxTokens(contents[s.ID])))
	}
	sb.WriteString("Revise o texto final antes de protocolar.")
	return sb.String()
}

func documentList(docs []models.Document) string {
	if len(docs) == 0 {
		return "Documentos recebidos até agora: nenhum."
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Documentos recebidos até agora (%d):\n", len(docs)))
	for _, d := range docs {
		sb.WriteString(fmt.Sprintf("  - %s (%s)\n", d.Name, classifier.Describe(d.RoleTags)))
	}
	return strings.TrimRight(sb.String(), "\n")
}
