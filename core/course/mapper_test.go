package course

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveName(t *testing.T) {
	mappings := map[string]string{
		"12345": "Intro to CS",
	}

	tests := []struct {
		name       string
		courseID   string
		cachedName string
		want       string
	}{
		{"mapping wins over cached name", "12345", "CS 101 Section A", "Intro to CS"},
		{"cached name used when no mapping", "678", "Organic Chemistry", "Organic Chemistry"},
		{"numeric id synthesized", "678", "", "Course 678"},
		{"empty everything", "", "", "Unknown Course"},
		{"unknown sentinel ignored", "678", "Unknown Course", "Course 678"},
		{"sentinel match is case-insensitive", "678", "UNKNOWN", "Course 678"},
		{"n/a sentinel ignored", "678", "n/a", "Course 678"},
		{"null sentinel ignored", "678", "null", "Course 678"},
		{"dashed id split and titled", "intro-to-cs", "", "Intro To Cs"},
		{"underscored id split and titled", "data_structures", "", "Data Structures"},
		{"camelCase id split", "organicChemistry", "undefined", "Organic Chemistry"},
		{"whitespace sentinel ignored", "678", "   ", "Course 678"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveName(tt.courseID, tt.cachedName, mappings)
			assert.Equal(t, tt.want, got)
			assert.NotEmpty(t, got)

			// deterministic
			assert.Equal(t, got, ResolveName(tt.courseID, tt.cachedName, mappings))
		})
	}
}

func TestResolveName_emptyMappingValueFallsThrough(t *testing.T) {
	got := ResolveName("678", "Organic Chemistry", map[string]string{"678": ""})
	assert.Equal(t, "Organic Chemistry", got)
}

func TestNameResolver(t *testing.T) {
	resolver := NewNameResolver([]NameMapping{
		{UserID: "u1", CourseID: "42", Name: "Linear Algebra"},
	})

	assert.Equal(t, "Linear Algebra", resolver.Resolve("42", "MATH-242"))
	assert.Equal(t, "MATH-242", resolver.Resolve("43", "MATH-242"))
	assert.Equal(t, "Course 44", resolver.Resolve("44", ""))
}

func TestSynthesizeName(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"", "Unknown Course"},
		{"12345", "Course 12345"},
		{"cs101", "Cs101"},
		{"advanced-topics_inAI", "Advanced Topics In AI"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, synthesizeName(tt.id), "id %q", tt.id)
	}
}
