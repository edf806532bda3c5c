package importer

import (
	"bytes"
	"mime"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// feedLink はHTMLのheadから検出したフィードへのリンク。
type feedLink struct {
	URL  string
	Atom bool
}

// isFeedResponse はContent-Typeとボディの先頭からRSS/Atomフィードかを判定する。
func isFeedResponse(contentType string, body []byte) bool {
	switch mediaType(contentType) {
	case "application/rss+xml", "application/atom+xml", "application/feed+json":
		return true
	case "text/xml", "application/xml", "":
		return looksLikeFeed(body)
	}
	return false
}

// isHTMLResponse はContent-TypeがHTMLかを判定する。
func isHTMLResponse(contentType string) bool {
	return strings.Contains(mediaType(contentType), "html")
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	return strings.ToLower(mt)
}

// looksLikeFeed は先頭4KBにRSS/Atomのルート要素があるかを調べる。
func looksLikeFeed(body []byte) bool {
	prefix := strings.ToLower(string(body[:min(len(body), 4096)]))
	if strings.Contains(prefix, "<rss") || strings.Contains(prefix, "<rdf:rdf") {
		return true
	}
	return strings.Contains(prefix, "<feed") && strings.Contains(prefix, "http://www.w3.org/2005/atom")
}

// discoverFeedLinks はHTMLのheadにある rel="alternate" のRSS/Atomリンクを返す。
// 相対URLはbaseURLを基準に解決する。
func discoverFeedLinks(body []byte, baseURL string) []feedLink {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	var links []feedLink
	tokenizer := html.NewTokenizer(bytes.NewReader(body))
	inHead := false
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return links

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := tokenizer.TagName()
			switch string(name) {
			case "head":
				inHead = true
				continue
			case "body":
				return links
			case "link":
			default:
				continue
			}
			if !inHead || !hasAttr {
				continue
			}

			var rel, typ, href string
			for {
				key, val, more := tokenizer.TagAttr()
				switch strings.ToLower(string(key)) {
				case "rel":
					rel = strings.ToLower(string(val))
				case "type":
					typ = strings.ToLower(string(val))
				case "href":
					href = string(val)
				}
				if !more {
					break
				}
			}
			if rel != "alternate" || href == "" {
				continue
			}
			if typ != "application/rss+xml" && typ != "application/atom+xml" {
				continue
			}
			ref, err := url.Parse(href)
			if err != nil {
				continue
			}
			links = append(links, feedLink{
				URL:  base.ResolveReference(ref).String(),
				Atom: typ == "application/atom+xml",
			})

		case html.EndTagToken:
			if name, _ := tokenizer.TagName(); string(name) == "head" {
				return links
			}
		}
	}
}

// selectFeedLink は同一ホスト、Atom、出現順の優先度で1件選ぶ。
func selectFeedLink(links []feedLink, pageURL string) (feedLink, bool) {
	if len(links) == 0 {
		return feedLink{}, false
	}
	host := hostOf(pageURL)
	best, bestScore := 0, -1
	for i, l := range links {
		score := 0
		if hostOf(l.URL) == host {
			score += 100
		}
		if l.Atom {
			score += 10
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return links[best], true
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
