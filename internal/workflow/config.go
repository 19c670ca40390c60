package workflow

import (
	"fmt"
	"strings"

	"github.com/Lllllllleong/legaldraftflow/internal/models"
)

// Config holds the user-command literals and limits for a drafting session.
type Config struct {
	// ConfirmToken advances to generation; matched case-insensitively.
	ConfirmToken string
	// ModifyToken returns to document submission; matched case-insensitively.
	ModifyToken string
	// MaxDocuments caps the documents a session accepts.
	MaxDocuments int
}

// DefaultConfig returns the Portuguese tokens used by the chat front end.
func DefaultConfig() Config {
	return Config{
		ConfirmToken: "CONFIRMAR",
		ModifyToken:  "MODIFICAR",
		MaxDocuments: models.MaxDocuments,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	confirm := strings.TrimSpace(c.ConfirmToken)
	modify := strings.TrimSpace(c.ModifyToken)
	if confirm == "" || modify == "" {
		return fmt.Errorf("workflow: confirm and modify tokens are required")
	}
	if strings.EqualFold(confirm, modify) {
		return fmt.Errorf("workflow: confirm and modify tokens must differ")
	}
	if c.MaxDocuments <= 0 || c.MaxDocuments > models.MaxDocuments {
		return fmt.Errorf("workflow: max documents must be between 1 and %d, got %d", models.MaxDocuments, c.MaxDocuments)
	}
	return nil
}

func (c Config) isConfirm(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), strings.TrimSpace(c.ConfirmToken))
}

func (c Config) isModify(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), strings.TrimSpace(c.ModifyToken))
}
