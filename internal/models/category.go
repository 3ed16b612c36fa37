package models

import (
	"fmt"
	"sort"
	"strings"
)

// Category names a class of monitored device. Each category owns one
// readings table.
type Category string

const tableSuffix = "_power_consumption"

var categoryNames = []string{
	"printer3d", "airconditioner", "airpurifier", "boiler", "coffee", "computer",
	"dehumidifier", "dishwasher", "dryer", "fan", "freezer", "fridge",
	"internetrouter", "laptop", "microwaveoven", "phonecharger", "printer", "radiator",
	"screen", "solarpanel", "soundsystem", "tv", "vacuumcleaner", "washingmachine",
}

var registry = func() map[Category]string {
	m := make(map[Category]string, len(categoryNames))
	for _, name := range categoryNames {
		m[Category(name)] = name + tableSuffix
	}
	return m
}()

// ErrUnknownCategory is returned by ParseCategory for names outside the
// registry.
type ErrUnknownCategory struct {
	Name string
}

func (e *ErrUnknownCategory) Error() string {
	return fmt.Sprintf("category '%s' not found", e.Name)
}

// ParseCategory resolves name against the registry. Spaces are removed and
// case is ignored.
func ParseCategory(name string) (Category, error) {
	normalized := Category(strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "")))
	if _, ok := registry[normalized]; !ok {
		return "", &ErrUnknownCategory{Name: name}
	}
	return normalized, nil
}

// Table returns the readings table of c. Only registered categories have a
// table, so the returned name is safe to interpolate into SQL.
func (c Category) Table() string {
	return registry[c]
}

// Valid reports whether c is registered.
func (c Category) Valid() bool {
	_, ok := registry[c]
	return ok
}

func (c Category) String() string {
	return string(c)
}

// PlotKey is the cache key of the category's plot bundle.
func (c Category) PlotKey() string {
	return string(c) + "_plot"
}

// StatisticsKey is the cache key of the category's summary statistics.
func (c Category) StatisticsKey() string {
	return string(c) + "_statistics"
}

// Categories returns every registered category in alphabetical order.
func Categories() []Category {
	out := make([]Category, 0, len(registry))
	for c := range registry {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
