package github

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReviewCache_Expiry(t *testing.T) {
	now := time.Date(2023, 9, 20, 12, 0, 0, 0, time.UTC)
	c := NewReviewCache(10 * time.Minute)
	c.now = func() time.Time { return now }

	ref := PRRef{Owner: "acme", Repo: "widgets", Number: 1}
	c.Put(ref, []Review{{ID: 1, State: "APPROVED"}})

	got, ok := c.Get(ref)
	assert.True(t, ok)
	assert.Len(t, got, 1)

	_, ok = c.Get(PRRef{Owner: "acme", Repo: "widgets", Number: 2})
	assert.False(t, ok)

	now = now.Add(11 * time.Minute)
	_, ok = c.Get(ref)
	assert.False(t, ok)

	assert.Equal(t, 1, c.Count())
	assert.Equal(t, 1, c.CleanExpired())
	assert.Equal(t, 0, c.Count())
}

func TestNewReviewCache_DefaultTTL(t *testing.T) {
	assert.Equal(t, time.Hour, NewReviewCache(0).ttl)
}

func TestPRRef_String(t *testing.T) {
	assert.Equal(t, "acme/widgets#42", PRRef{Owner: "acme", Repo: "widgets", Number: 42}.String())
}
