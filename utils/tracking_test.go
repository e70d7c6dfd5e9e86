package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	testBase      = "https://app.example.com"
	testMessageID = "abc-123@example.com"
)

func TestInjectTracking_OpensOnly(t *testing.T) {
	out := InjectTracking("<p>Hello</p>", testBase, testMessageID, true, false)

	assert.Contains(t, out, "<p>Hello</p>")
	assert.Contains(t, out, TrackingPixelURL(testBase, testMessageID))
	assert.Contains(t, out, `width="1" height="1"`)
}

func TestInjectTracking_RewritesLinks(t *testing.T) {
	body := `<p>See <a href="https://example.com/pricing">pricing</a> and <a href="https://example.com/docs">docs</a>.</p>`
	out := InjectTracking(body, testBase, testMessageID, false, true)

	assert.NotContains(t, out, `href="https://example.com/pricing"`)
	assert.Contains(t, out, ClickTrackURL(testBase, testMessageID, "https://example.com/pricing"))
	assert.Contains(t, out, ClickTrackURL(testBase, testMessageID, "https://example.com/docs"))
	assert.NotContains(t, out, "/track/open/", "opens disabled, no pixel expected")
}

func TestInjectTracking_Disabled(t *testing.T) {
	body := `<a href="https://example.com">x</a>`
	assert.Equal(t, body, InjectTracking(body, testBase, testMessageID, false, false))
}

func TestAppendUnsubscribeFooter(t *testing.T) {
	out := AppendUnsubscribeFooter("<p>Bye</p>", testBase, testMessageID, "Opt out", false)
	assert.Contains(t, out, UnsubscribeURL(testBase, testMessageID))
	assert.Contains(t, out, ">Opt out</a>")

	out = AppendUnsubscribeFooter("Bye", testBase, testMessageID, "", true)
	assert.Contains(t, out, "Unsubscribe: "+UnsubscribeURL(testBase, testMessageID))
	assert.NotContains(t, out, "<a href")
}
