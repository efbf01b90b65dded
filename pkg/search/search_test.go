package search

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamBag_OrderAndValues(t *testing.T) {
	p := NewParamBag(nil)
	p.Add("fq", "format:Book")
	p.Set("sort", "title")
	p.Add("fq", "language:English")

	assert.Equal(t, []string{"fq", "sort"}, p.Keys())
	assert.Equal(t, []string{"format:Book", "language:English"}, p.Get("fq"))

	first, ok := p.GetFirst("sort")
	assert.True(t, ok)
	assert.Equal(t, "title", first)

	p.Remove("fq")
	assert.False(t, p.Has("fq"))
	assert.Equal(t, []string{"sort"}, p.Keys())
	assert.Equal(t, 1, p.Len())
}

func TestParamBag_CloneIsIndependent(t *testing.T) {
	p := NewParamBag(map[string][]string{"a": {"1"}})
	c := p.Clone()
	c.Add("a", "2")

	assert.Equal(t, []string{"1"}, p.Get("a"))
	assert.Equal(t, []string{"1", "2"}, c.Get("a"))
}

func TestParamBag_Merge(t *testing.T) {
	p := NewParamBag(nil)
	p.Set("a", "1")

	other := NewParamBag(nil)
	other.Set("b", "2")
	other.Set("a", "3")

	p.Merge(other)
	assert.Equal(t, map[string][]string{"a": {"1", "3"}, "b": {"2"}}, p.ToMap())
	assert.Equal(t, []string{"a", "b"}, p.Keys())
}

func TestParamBag_NilSafe(t *testing.T) {
	var p *ParamBag
	assert.Nil(t, p.Get("x"))
	assert.False(t, p.Has("x"))
	assert.Equal(t, 0, p.Len())
	assert.Empty(t, p.ToMap())
}

func TestParamBag_Decode(t *testing.T) {
	p := NewParamBag(nil)
	p.Set("fq", "status:published")
	p.Set("fields", "title", "author")
	p.Set("timeout", "30")

	var opts struct {
		Filters []string `param:"fq"`
		Fields  []string `param:"fields"`
		Timeout int      `param:"timeout"`
		Missing string   `param:"missing"`
	}
	require.NoError(t, p.Decode(&opts))

	assert.Equal(t, []string{"status:published"}, opts.Filters)
	assert.Equal(t, []string{"title", "author"}, opts.Fields)
	assert.Equal(t, 30, opts.Timeout)
	assert.Empty(t, opts.Missing)
}

func TestRecordCollection_FirstAndAdd(t *testing.T) {
	c := NewRecordCollection("b1", nil, 0, 0)
	assert.Nil(t, c.First())

	c.Add(&Document{ID: "a", Source: "b1"})
	c.Add(&Document{ID: "b", Source: "b1"})

	require.NotNil(t, c.First())
	assert.Equal(t, "a", c.First().RecordID())
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []string{"a", "b"}, c.IDs())
}

func TestRecordCollection_NilAccessors(t *testing.T) {
	var c *RecordCollection
	assert.Equal(t, 0, c.Total())
	assert.Equal(t, 0, c.Offset())
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.SourceIdentifier())
	assert.Nil(t, c.Records())
	assert.Nil(t, c.IDs())
	assert.Nil(t, c.First())
	assert.NotPanics(t, func() { c.Shuffle(nil) })
}

func TestRecordCollection_ShuffleIsPermutation(t *testing.T) {
	var records []Record
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		records = append(records, &IDRecord{ID: id})
	}
	c := NewRecordCollection("b1", records, len(records), 0)

	c.Shuffle(rand.New(rand.NewPCG(1, 2)))
	assert.ElementsMatch(t, []string{"a", "b", "c", "d", "e", "f"}, c.IDs())

	c.Shuffle(nil)
	assert.ElementsMatch(t, []string{"a", "b", "c", "d", "e", "f"}, c.IDs())
}

func TestIsMatchAll(t *testing.T) {
	assert.True(t, IsMatchAll(nil))
	assert.True(t, IsMatchAll(MatchAllQuery{}))
	assert.True(t, IsMatchAll(NewStringQuery("")))
	assert.True(t, IsMatchAll(NewStringQuery("*:*")))
	assert.False(t, IsMatchAll(NewStringQuery("dune")))
}

func TestLuceneSyntaxHelper_ContainsAdvancedSyntax(t *testing.T) {
	h := NewLuceneSyntaxHelper()

	tests := []struct {
		input string
		want  bool
	}{
		{"climate change", false},
		{`"climate change"`, false},
		{`"title:inside phrase"`, false},
		{"title:dune", true},
		{"dune AND herbert", true},
		{"dune and herbert", false},
		{"herb*", true},
		{"herbert~", true},
		{"dune^2", true},
		{"year:[1960 TO 1970]", true},
		{"(dune)", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, h.ContainsAdvancedSyntax(tt.input))
		})
	}
}

func TestLuceneSyntaxHelper_Normalize(t *testing.T) {
	h := NewLuceneSyntaxHelper()
	assert.Equal(t, "dune herbert", h.Normalize("  dune \t herbert "))
	assert.Equal(t, "dune herbert", h.Normalize(`dune herbert"`))

	insensitive := &LuceneSyntaxHelper{}
	assert.Equal(t, "dune AND herbert OR frank", insensitive.Normalize("dune and herbert or frank"))
	assert.True(t, insensitive.ContainsAdvancedSyntax("dune or herbert"))
}
