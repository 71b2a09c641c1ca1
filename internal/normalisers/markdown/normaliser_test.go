package markdown

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/changelens/internal/core/domain"
)

func TestSupportedMIMETypes(t *testing.T) {
	mimeTypes := New().SupportedMIMETypes()

	assert.Contains(t, mimeTypes, "text/markdown")
	assert.Contains(t, mimeTypes, "text/x-markdown")
	assert.Len(t, mimeTypes, 2)
}

func TestPriority(t *testing.T) {
	assert.Equal(t, 50, New().Priority())
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		markdown string
		want     string
	}{
		{
			name:     "headings kept",
			markdown: "# Escalation Procedure\n\nThis is a test.",
			want:     "# Escalation Procedure\n\nThis is a test.",
		},
		{
			name:     "emphasis removed",
			markdown: "Agents **must** log *every* call in ___Zendesk___.",
			want:     "Agents must log every call in Zendesk.",
		},
		{
			name:     "links and images",
			markdown: "See [the policy](https://example.com/policy) ![logo](logo.png)for details.",
			want:     "See the policy for details.",
		},
		{
			name:     "inline code keeps its text",
			markdown: "Run `backup.sh` nightly.",
			want:     "Run backup.sh nightly.",
		},
		{
			name:     "code fences dropped",
			markdown: "Intro\n\n```bash\necho hi\n```\n\nOutro",
			want:     "Intro\n\necho hi\n\nOutro",
		},
		{
			name:     "bullets stripped and numbers kept",
			markdown: "- first\n* second\n\n1. Open the ticket\n2. Close it",
			want:     "first\nsecond\n\n1. Open the ticket\n2. Close it",
		},
		{
			name:     "blockquote and rule",
			markdown: "> Quoted line\n\n---\n\nAfter",
			want:     "Quoted line\n\nAfter",
		},
		{
			name:     "crlf",
			markdown: "A\r\n\r\nB",
			want:     "A\n\nB",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New().Extract(context.Background(), &domain.RawContent{
				Name:     "sop.md",
				MIMEType: "text/markdown",
				Content:  []byte(tt.markdown),
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtract_Nil(t *testing.T) {
	_, err := New().Extract(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
