package services

import (
	"fmt"

	"github.com/Lllllllleong/legaldraftflow/internal/models"
)

const msgDeliveryFailed = "Não foi possível publicar o arquivo final; o texto continua salvo na sessão."

func msgDelivered(d *models.DeliveryResponse) string {
	return fmt.Sprintf("Arquivo final disponível em %s (HTML: %s).", d.MarkdownURI, d.HTMLURI)
}
