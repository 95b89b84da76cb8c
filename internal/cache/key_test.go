package cache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyIsOrderIndependent(t *testing.T) {
	a := Params{}
	a["budget"] = 500000
	a["minBedrooms"] = 3

	b := Params{}
	b["minBedrooms"] = 3
	b["budget"] = 500000

	assert.Equal(t, Key(a), Key(b))
	assert.Len(t, Key(a), 64)
}

func TestKeyNormalizesSets(t *testing.T) {
	a := Params{"amenities": []string{"pool", "garage", "garden"}}
	b := Params{"amenities": []string{"garden", "pool", "garage"}}
	c := Params{"amenities": map[string]struct{}{"garage": {}, "garden": {}, "pool": {}}}
	d := Params{"amenities": map[string]bool{"garage": true, "garden": true, "pool": true, "gym": false}}

	assert.Equal(t, Key(a), Key(b))
	assert.Equal(t, Key(a), Key(c))
	assert.Equal(t, Key(a), Key(d))
}

func TestKeyDropsNilAndEmpty(t *testing.T) {
	var commute *float64
	base := Params{"budget": 500000.0, "minBedrooms": 3}
	withNil := Params{"budget": 500000.0, "minBedrooms": 3, "maxCommute": commute, "amenities": []string{}, "extra": nil}

	assert.Equal(t, Key(base), Key(withNil))
}

func TestKeyDereferencesPointers(t *testing.T) {
	commute := 45.0
	assert.Equal(t,
		Key(Params{"maxCommute": 45.0}),
		Key(Params{"maxCommute": &commute}),
	)
}

func TestKeyNumericFormsAgree(t *testing.T) {
	assert.Equal(t, Key(Params{"budget": 500000}), Key(Params{"budget": 500000.0}))
}

func TestKeyDistinguishesValues(t *testing.T) {
	base := Key(Params{"budget": 500000, "minBedrooms": 3})
	assert.NotEqual(t, base, Key(Params{"budget": 500001, "minBedrooms": 3}))
	assert.NotEqual(t, base, Key(Params{"budget": 500000, "minBedrooms": 4}))
	assert.NotEqual(t, base, Key(Params{"budget": 500000, "minBeds": 3}))
}

func TestKeyNestedMapsAreCanonical(t *testing.T) {
	a := Params{"filter": map[string]any{"city": "austin", "tags": []string{"b", "a"}}}
	b := Params{"filter": map[string]any{"tags": []string{"a", "b"}, "city": "austin"}}
	assert.Equal(t, Key(a), Key(b))
}

func TestNamespacedKey(t *testing.T) {
	k := NamespacedKey("recommend", Params{"budget": 1})
	assert.True(t, strings.HasPrefix(k, "recommend:"))
	assert.Equal(t, "recommend:"+Key(Params{"budget": 1}), k)
}

func TestCanonicalForm(t *testing.T) {
	got := string(Canonical(Params{"b": 2, "a": []string{"y", "x"}}))
	assert.Equal(t, "\"a\"=[\"x\",\"y\"]\n\"b\"=2\n", got)
}
