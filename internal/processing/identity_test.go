package processing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentID(t *testing.T) {
	t.Run("Should be deterministic for identical input", func(t *testing.T) {
		a := DocumentID("Title", "Authors", "2024-01-01")
		b := DocumentID("Title", "Authors", "2024-01-01")
		assert.Equal(t, a, b)
		assert.Len(t, a, 64)
	})

	t.Run("Should match the fixed hash layout", func(t *testing.T) {
		// sha256("Title-Authors-2024-01-01")
		assert.Equal(t,
			"e29269bd19e95c14c9f5eb5d75d56f5b6c8ac1b2dc509d042db62cba93f0266b",
			DocumentID("Title", "Authors", "2024-01-01"))
		// sha256("Unknown-Unknown-2024-01-01")
		assert.Equal(t,
			"efcd095fa5c386374790df5301ad98127d06d7fefc2cecebb1d44ed9f5921136",
			DocumentID("Unknown", "Unknown", "2024-01-01"))
	})

	t.Run("Should change when any field changes", func(t *testing.T) {
		base := DocumentID("Title", "Authors", "2024-01-01")
		assert.NotEqual(t, base, DocumentID("Other", "Authors", "2024-01-01"))
		assert.NotEqual(t, base, DocumentID("Title", "Other", "2024-01-01"))
		assert.NotEqual(t, base, DocumentID("Title", "Authors", "2024-01-02"))
	})
}
