// Package enrich joins host scan records with site metadata: the Alexa
// top-sites ranking and the DMOZ open directory.
//
// An Index is keyed by registrable domain. LoadAlexa seeds it, ApplyDMOZ adds
// directory data to the domains already present, and Join merges the result
// into a stream of scan records.
package enrich

import "github.com/hostscan/hostscan/pkg/record"

// Entry is the metadata known for one domain.
type Entry struct {
	Domain string
	Rank   int64

	DMOZURL         *string
	DMOZTitle       *string
	DMOZDescription *string
	Topics          []string
}

// Index maps a domain to its metadata.
type Index map[string]*Entry

// Apply copies the entry into the metadata of a scan record.
func (e *Entry) Apply(m *record.HostMetadata) {
	rank := e.Rank
	domain := e.Domain
	m.AlexaRank = &rank
	m.AlexaDomain = &domain
	m.DMOZURL = e.DMOZURL
	m.DMOZTitle = e.DMOZTitle
	m.DMOZDescription = e.DMOZDescription
	m.DMOZTopic = append([]string{}, e.Topics...)
}
