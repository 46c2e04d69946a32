package debate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()

	all := c.Templates(true)
	assert.Len(t, all, 11)
	visible := c.Templates(false)
	assert.Len(t, visible, 9)
	for _, tpl := range visible {
		assert.False(t, tpl.Hidden, tpl.ID)
	}

	free, err := c.Template("free-debate")
	require.NoError(t, err)
	assert.Equal(t, "자유토론", free.Name)
	require.Len(t, free.Steps, 5)
	assert.Equal(t, Step{ID: "step-3", Type: StepFreeDebate, Time: 1200, MaxSpeakTime: 120}, free.Steps[2])
	assert.Len(t, free.SchoolVariants, 1)
}

func TestCatalog_Variant(t *testing.T) {
	c := DefaultCatalog()

	v, err := c.Variant("free-debate", "visual-free-debate")
	require.NoError(t, err)
	assert.Equal(t, "명지대학교", v.University)
	assert.Equal(t, 60, v.Steps[0].Time)
	assert.Empty(t, v.SchoolVariants)

	_, err = c.Variant("free-debate", "nope")
	assert.ErrorIs(t, err, ErrVariantUnknown)
	_, err = c.Template("nope")
	assert.ErrorIs(t, err, ErrTemplateUnknown)
}

func TestLoadCatalog_Invalid(t *testing.T) {
	cases := map[string]string{
		"no steps":      "templates:\n  - id: a\n    steps: []\n",
		"zero time":     "templates:\n  - id: a\n    steps:\n      - {type: 입론, time: 0}\n",
		"unknown type":  "templates:\n  - id: a\n    steps:\n      - {type: 낭독, time: 10}\n",
		"unknown team":  "templates:\n  - id: a\n    steps:\n      - {type: 입론, time: 10, team: 중립}\n",
		"duplicate ids": "templates:\n  - id: a\n    steps:\n      - {type: 입론, time: 10}\n  - id: a\n    steps:\n      - {type: 입론, time: 10}\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadCatalog([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	_, err := LoadCatalog([]byte("templates: ["))
	assert.Error(t, err)
}
