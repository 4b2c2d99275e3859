// Package universe resolves named stock universes (NSE indices) to their
// member symbols.
package universe

import (
	"context"
	"sort"
)

// Index is one supported NSE index.
type Index struct {
	Name  string // display name, e.g. "Nifty 50"
	Param string // NSE API index parameter, e.g. "NIFTY 50"
}

// Indices lists the supported universes in display order.
var Indices = []Index{
	{"Nifty 100", "NIFTY 100"},
	{"Nifty 200", "NIFTY 200"},
	{"Nifty 500", "NIFTY 500"},
	{"Nifty 50", "NIFTY 50"},
	{"Nifty Next 50", "NIFTY NEXT 50"},
	{"Nifty Midcap 50", "NIFTY MIDCAP 50"},
	{"Nifty Bank", "NIFTY BANK"},
	{"Nifty IT", "NIFTY IT"},
	{"Nifty Pharma", "NIFTY PHARMA"},
	{"Nifty FMCG", "NIFTY FMCG"},
}

// Static is a fixed set of universes, e.g. a symbol list given on the
// command line.
type Static struct {
	names   []string
	members map[string][]string
}

func NewStatic(members map[string][]string) *Static {
	s := &Static{members: make(map[string][]string, len(members))}
	for name, syms := range members {
		s.names = append(s.names, name)
		s.members[name] = append([]string(nil), syms...)
	}
	sort.Strings(s.names)
	return s
}

func (s *Static) Names() []string {
	return append([]string(nil), s.names...)
}

func (s *Static) Get(_ context.Context, name string) []string {
	return append([]string(nil), s.members[name]...)
}
