package utils

import (
	"fmt"
	"net/url"
	"strings"
)

// TrackingPixelURL returns the open-tracking pixel URL for a message.
func TrackingPixelURL(baseURL, messageID string) string {
	return fmt.Sprintf("%s/track/open/%s", baseURL, url.PathEscape(messageID))
}

// ClickTrackURL returns the redirect URL that records a click on originalURL.
func ClickTrackURL(baseURL, messageID, originalURL string) string {
	return fmt.Sprintf("%s/track/click/%s?url=%s", baseURL, url.PathEscape(messageID), url.QueryEscape(originalURL))
}

// UnsubscribeURL returns the one-click unsubscribe URL for a message.
func UnsubscribeURL(baseURL, messageID string) string {
	return fmt.Sprintf("%s/unsubscribe/%s", baseURL, url.PathEscape(messageID))
}

// InjectTracking rewrites links through the click tracker and appends the
// open-tracking pixel. HTML bodies only.
func InjectTracking(htmlContent, baseURL, messageID string, trackOpens, trackClicks bool) string {
	out := htmlContent
	if trackClicks {
		out = injectClickTracking(out, baseURL, messageID)
	}
	if trackOpens {
		pixel := fmt.Sprintf(`<img src="%s" alt="" width="1" height="1" style="display:none">`, TrackingPixelURL(baseURL, messageID))
		out += pixel
	}
	return out
}

// AppendUnsubscribeFooter adds the unsubscribe link to the end of the body.
func AppendUnsubscribeFooter(body, baseURL, messageID, text string, plainText bool) string {
	if text == "" {
		text = "Unsubscribe"
	}
	link := UnsubscribeURL(baseURL, messageID)
	if plainText {
		return fmt.Sprintf("%s\n\n%s: %s", body, text, link)
	}
	return fmt.Sprintf(`%s<br><br><a href="%s">%s</a>`, body, link, text)
}

// injectClickTracking replaces every <a href="..."> target with a tracked
// redirect. Naive scan rather than a full HTML parse; matches the simple
// markup our sequence editor produces.
func injectClickTracking(html, baseURL, messageID string) string {
	const startTag = `<a href="`
	const endTag = `"`

	var b strings.Builder
	rest := html
	for {
		idx := strings.Index(rest, startTag)
		if idx == -1 {
			b.WriteString(rest)
			break
		}
		hrefStart := idx + len(startTag)
		hrefEnd := strings.Index(rest[hrefStart:], endTag)
		if hrefEnd == -1 {
			b.WriteString(rest)
			break
		}
		hrefEnd += hrefStart

		original := rest[hrefStart:hrefEnd]
		b.WriteString(rest[:hrefStart])
		b.WriteString(ClickTrackURL(baseURL, messageID, original))
		rest = rest[hrefEnd:]
	}
	return b.String()
}
