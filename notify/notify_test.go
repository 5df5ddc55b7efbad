package notify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eringen/bandsite/content"
)

func TestAuditionAlertEscapesInput(t *testing.T) {
	msg := AuditionAlert("contact@u4cband.com", content.AuditionRequest{
		Name:       "Ana",
		Email:      "ana@example.com",
		Instrument: "drums",
		Message:    "<script>alert(1)</script>",
	})
	assert.Equal(t, []string{"contact@u4cband.com"}, msg.To)
	assert.Equal(t, "ana@example.com", msg.ReplyTo)
	assert.Equal(t, "New audition request from Ana", msg.Subject)
	assert.Contains(t, msg.HTML, "&lt;script&gt;")
	assert.False(t, strings.Contains(msg.HTML, "<script>"))
	assert.NotContains(t, msg.HTML, "Phone", "empty fields are omitted")
}
