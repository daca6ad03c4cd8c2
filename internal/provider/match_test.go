package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"One More Time", "one more time"},
		{"Señorita", "senorita"},
		{"Blue (Da Ba Dee) [Radio Edit]", "blue"},
		{"Titanium feat. Sia", "titanium"},
		{"Stay With Me", "stay with me"},
		{"  AC/DC  ", "ac dc"},
		{"Beyoncé ft. Jay-Z", "beyonce"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestOverlap(t *testing.T) {
	assert.Equal(t, 1.0, Overlap("a b", "b a"))
	assert.Equal(t, 0.5, Overlap("a b", "a c"))
	assert.Equal(t, 0.0, Overlap("", "a"))
	assert.InDelta(t, 2.0/3.0, Overlap("one more time", "one more"), 1e-9)
}

func TestMatch(t *testing.T) {
	q := Query{Artist: "Daft Punk", Title: "One More Time"}

	tests := []struct {
		name string
		q    Query
		c    Candidate
		want float64
	}{
		{"exact", q, Candidate{Artist: "Daft Punk", Title: "One More Time"}, ExactConfidence},
		{"exact after normalization", q, Candidate{Artist: "DAFT PUNK", Title: "One More Time (Radio Edit)"}, ExactConfidence},
		{"artist credit contains seed", q, Candidate{Artist: "Daft Punk, Romanthony", Title: "One More Time"}, ExactConfidence},
		{"seed is one of joined credits", q, Candidate{Artist: "Romanthony; Daft Punk", Title: "One More Time"}, ExactConfidence},
		{"isrc wins", Query{ISRC: "GBDUW0000059"}, Candidate{ISRC: "gbduw0000059", Title: "whatever"}, ISRCConfidence},
		{"fuzzy", q, Candidate{Artist: "Daft Punk", Title: "One More"}, FuzzyConfidence * (2.0/3.0 + 1) / 2},
		{"no match", q, Candidate{Artist: "Metallica", Title: "One"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Match(tt.q, tt.c), 1e-9)
		})
	}
}

func TestBest(t *testing.T) {
	q := Query{Artist: "Daft Punk", Title: "One More Time"}
	cs := []Candidate{
		{Artist: "Metallica", Title: "One"},
		{Artist: "Daft Punk", Title: "One More Time"},
		{Artist: "Daft Punk", Title: "One More"},
	}

	i, score := Best(q, cs)
	assert.Equal(t, 1, i)
	assert.Equal(t, ExactConfidence, score)

	i, score = Best(q, nil)
	assert.Equal(t, -1, i)
	assert.Zero(t, score)
}

func TestMatch_SameArtistOtherTitle(t *testing.T) {
	q := Query{Artist: "Daft Punk", Title: "One More Time"}
	assert.Zero(t, Match(q, Candidate{Artist: "Daft Punk", Title: "Around the World"}))
}

func TestMatch_ArtistNameInsideAnotherArtist(t *testing.T) {
	tests := []struct {
		name string
		q    Query
		c    Candidate
	}{
		{"prefix of a longer name", Query{Artist: "Low", Title: "Words"}, Candidate{Artist: "Lower Than Atlantis", Title: "Words"}},
		{"inside a word", Query{Artist: "Ed", Title: "Hello"}, Candidate{Artist: "Fred Again", Title: "Hello"}},
		{"inside a joined credit", Query{Artist: "Ed", Title: "Hello"}, Candidate{Artist: "Adele; Fred Again", Title: "Hello"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Match(tt.q, tt.c)
			assert.Less(t, got, ExactConfidence)
			// exact title, no artist token in common
			assert.InDelta(t, FuzzyConfidence*0.5, got, 1e-9)
		})
	}
}
