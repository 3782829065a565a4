// Package cities holds the fixed set of cities the service forecasts for.
package cities

import (
	"errors"
	"fmt"
)

// ErrUnknownCity is returned when a name does not match a registry key exactly.
var ErrUnknownCity = errors.New("unknown city")

// City is a registry entry.
type City struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// all is ordered; Names and All return entries in this order.
var all = []City{
	{Name: "Bloemfontein", Latitude: -29.085, Longitude: 26.159},
	{Name: "Cape Town", Latitude: -33.924, Longitude: 18.424},
	{Name: "Durban", Latitude: -29.858, Longitude: 31.021},
	{Name: "Jhb", Latitude: -26.204, Longitude: 28.047},
	{Name: "Nelspuit", Latitude: -25.475, Longitude: 30.969},
	{Name: "Port Elizabeth", Latitude: -33.960, Longitude: 25.602},
	{Name: "Polokwane", Latitude: -23.896, Longitude: 29.448},
	{Name: "Pretoria", Latitude: -25.747, Longitude: 28.229},
	{Name: "Rustenburg", Latitude: -25.654, Longitude: 27.255},
}

var byName = func() map[string]City {
	m := make(map[string]City, len(all))
	for _, c := range all {
		m[c.Name] = c
	}
	return m
}()

// Registry resolves city names to coordinates.
type Registry struct {
	cities []City
	index  map[string]City
}

// Default returns the built-in registry.
func Default() *Registry {
	return &Registry{cities: all, index: byName}
}

// New builds a registry from an explicit list. Later duplicates are ignored.
func New(list []City) *Registry {
	r := &Registry{index: make(map[string]City, len(list))}
	for _, c := range list {
		if _, dup := r.index[c.Name]; dup {
			continue
		}
		r.index[c.Name] = c
		r.cities = append(r.cities, c)
	}
	return r
}

// Lookup returns the city with the exact (case-sensitive) name.
func (r *Registry) Lookup(name string) (City, error) {
	c, ok := r.index[name]
	if !ok {
		return City{}, fmt.Errorf("%w: %q", ErrUnknownCity, name)
	}
	return c, nil
}

// All returns a copy of the registry entries in registration order.
func (r *Registry) All() []City {
	out := make([]City, len(r.cities))
	copy(out, r.cities)
	return out
}

// Names returns the city names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.cities))
	for _, c := range r.cities {
		out = append(out, c.Name)
	}
	return out
}
