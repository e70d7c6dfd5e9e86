package utils

import (
	"strings"

	"sendloop/models"
)

// RenderTemplate substitutes {{variable}} placeholders in sequence subjects
// and bodies with the lead's fields. Unknown placeholders are left untouched.
func RenderTemplate(content string, lead *models.Lead) string {
	fullName := strings.TrimSpace(lead.FirstName + " " + lead.LastName)
	replacer := strings.NewReplacer(
		"{{first_name}}", lead.FirstName,
		"{{last_name}}", lead.LastName,
		"{{full_name}}", fullName,
		"{{email}}", lead.Email,
		"{{company}}", lead.Company,
		"{{position}}", lead.Position,
		"{{phone}}", lead.Phone,
		"{{website}}", lead.Website,
	)
	return replacer.Replace(content)
}
