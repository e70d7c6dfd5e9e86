package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sendloop/models"
)

func TestRenderTemplate(t *testing.T) {
	lead := &models.Lead{
		Email:     "jordan@acme.test",
		FirstName: "Jordan",
		LastName:  "Lee",
		Company:   "Acme",
		Position:  "CTO",
	}

	out := RenderTemplate("Hi {{first_name}}, how is {{company}} doing?", lead)
	assert.Equal(t, "Hi Jordan, how is Acme doing?", out)

	out = RenderTemplate("{{full_name}} <{{email}}>", lead)
	assert.Equal(t, "Jordan Lee <jordan@acme.test>", out)
}

func TestRenderTemplate_MissingFieldsAndUnknownPlaceholders(t *testing.T) {
	lead := &models.Lead{FirstName: "Jordan"}

	// Empty fields substitute to empty, full_name trims the stray space.
	out := RenderTemplate("{{full_name}} at {{company}}", lead)
	assert.Equal(t, "Jordan at ", out)

	// Unknown placeholders pass through unchanged.
	out = RenderTemplate("{{nonsense}} {{first_name}}", lead)
	assert.Equal(t, "{{nonsense}} Jordan", out)
}
