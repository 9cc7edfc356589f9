package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultWritingStyle(t *testing.T) {
	s := DefaultWritingStyle()
	assert.Equal(t, "default", s.ProfileName)
	assert.Equal(t, 0.5, s.Formality)
	assert.Equal(t, 0.5, s.Brevity)
	assert.Equal(t, []string{"Hi", "Hello"}, s.PreferredGreetings)
	assert.Equal(t, []string{"Best,", "Regards,"}, s.PreferredClosings)
	assert.Empty(t, s.ToneMarkers)
	assert.Equal(t, "Hi", s.Greeting())
	assert.Equal(t, "Best,", s.Closing())
}

func TestWritingStyleNormalize(t *testing.T) {
	s := WritingStyle{Formality: 1.7, Brevity: -0.2}
	s.Normalize()

	assert.Equal(t, DefaultProfileName, s.ProfileName)
	assert.Equal(t, 1.0, s.Formality)
	assert.Equal(t, 0.0, s.Brevity)
	assert.NotNil(t, s.PreferredGreetings)
	assert.NotNil(t, s.ToneMarkers)
	assert.Equal(t, "Hi", s.Greeting())
	assert.Equal(t, "Best,", s.Closing())
}
