package enrich

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/publicsuffix"
)

type externalPage struct {
	About       string `xml:"about,attr"`
	Title       string `xml:"Title"`
	Description string `xml:"Description"`
	Topic       string `xml:"topic"`
}

// ApplyDMOZ streams the DMOZ content dump and attaches directory data to the
// domains already in idx. Only home pages count: the URL path must be "/",
// the host must be the registrable domain or its www subdomain, and the URL
// must carry no query or fragment. Topics accumulate; the first URL, title
// and description win. It returns the number of matched pages.
func ApplyDMOZ(r io.Reader, idx Index) (int, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = false
	dec.Entity = xml.HTMLEntity

	var matched, pages int
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return matched, fmt.Errorf("read dmoz dump: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "ExternalPage" {
			continue
		}

		var page externalPage
		if err := dec.DecodeElement(&page, &start); err != nil {
			return matched, fmt.Errorf("decode dmoz page: %w", err)
		}
		pages++

		domain, ok := homePageDomain(page.About)
		if !ok {
			continue
		}
		e, ok := idx[domain]
		if !ok {
			continue
		}
		matched++
		if page.Topic != "" {
			e.Topics = append(e.Topics, page.Topic)
		}
		if e.DMOZURL == nil {
			about := page.About
			e.DMOZURL = &about
		}
		if e.DMOZTitle == nil {
			title := page.Title
			e.DMOZTitle = &title
		}
		if e.DMOZDescription == nil {
			desc := page.Description
			e.DMOZDescription = &desc
		}
	}

	log.Debug().Str("component", "enrich").Int("pages", pages).Int("matched", matched).Msg("dmoz applied")
	return matched, nil
}

// homePageDomain returns the registrable domain of a site's home page URL.
func homePageDomain(raw string) (string, bool) {
	if strings.ContainsAny(raw, "?#") {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Path != "/" {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return "", false
	}
	switch strings.TrimSuffix(host, domain) {
	case "", "www.":
		return domain, true
	default:
		return "", false
	}
}
