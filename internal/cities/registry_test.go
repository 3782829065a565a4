package cities

import (
	"errors"
	"testing"
)

func TestDefault_HasNineCities(t *testing.T) {
	r := Default()
	if got := len(r.All()); got != 9 {
		t.Fatalf("len(All()) = %d, want 9", got)
	}
	names := r.Names()
	if names[0] != "Bloemfontein" || names[8] != "Rustenburg" {
		t.Errorf("Names() order = %v", names)
	}
}

func TestLookup(t *testing.T) {
	r := Default()
	c, err := r.Lookup("Cape Town")
	if err != nil {
		t.Fatalf("Lookup(Cape Town) error = %v", err)
	}
	if c.Latitude != -33.924 || c.Longitude != 18.424 {
		t.Errorf("Cape Town = %+v", c)
	}
}

func TestLookup_CaseSensitive(t *testing.T) {
	r := Default()
	for _, name := range []string{"cape town", "CAPE TOWN", "Cape Town ", "Johannesburg", ""} {
		if _, err := r.Lookup(name); !errors.Is(err, ErrUnknownCity) {
			t.Errorf("Lookup(%q) error = %v, want ErrUnknownCity", name, err)
		}
	}
}

func TestAll_ReturnsCopy(t *testing.T) {
	r := Default()
	list := r.All()
	list[0].Name = "Mutated"
	if _, err := r.Lookup("Bloemfontein"); err != nil {
		t.Fatalf("registry mutated through All(): %v", err)
	}
	if r.All()[0].Name != "Bloemfontein" {
		t.Error("All() must return a copy")
	}
}

func TestNew_SkipsDuplicates(t *testing.T) {
	r := New([]City{{Name: "A", Latitude: 1}, {Name: "A", Latitude: 2}, {Name: "B"}})
	if got := r.Names(); len(got) != 2 {
		t.Fatalf("Names() = %v, want 2 entries", got)
	}
	a, _ := r.Lookup("A")
	if a.Latitude != 1 {
		t.Errorf("A.Latitude = %v, want first entry", a.Latitude)
	}
}
