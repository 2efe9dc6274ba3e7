package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint(t *testing.T) {
	master := &Input{Filename: "master.xlsx", Data: []byte("aaa")}
	analysis := &Input{Filename: "analysis.xlsx", Data: []byte("bbb")}

	base := Fingerprint(Inputs{Master: master, Analysis: analysis})

	t.Run("deterministic for identical inputs", func(t *testing.T) {
		again := Fingerprint(Inputs{
			Master:   &Input{Filename: "master.xlsx", Data: []byte("aaa")},
			Analysis: &Input{Filename: "analysis.xlsx", Data: []byte("bbb")},
		})
		assert.Equal(t, base, again)
	})

	t.Run("changed content changes the digest", func(t *testing.T) {
		changed := Fingerprint(Inputs{
			Master:   &Input{Filename: "master.xlsx", Data: []byte("aab")},
			Analysis: analysis,
		})
		assert.NotEqual(t, base, changed)
	})

	t.Run("changed filename changes the digest", func(t *testing.T) {
		renamed := Fingerprint(Inputs{
			Master:   &Input{Filename: "master-v2.xlsx", Data: []byte("aaa")},
			Analysis: analysis,
		})
		assert.NotEqual(t, base, renamed)
	})

	t.Run("role placement matters", func(t *testing.T) {
		swapped := Fingerprint(Inputs{
			Master:   analysis,
			Analysis: master,
		})
		assert.NotEqual(t, base, swapped)
	})

	t.Run("missing file differs from present file", func(t *testing.T) {
		partial := Fingerprint(Inputs{Master: master})
		assert.NotEqual(t, base, partial)
	})
}
