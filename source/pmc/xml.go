// Copyright 2025 Lexeme Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pmc

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"
)

// article holds the pieces of a PMC full-text XML document that matter
// for search: the title and the body text, section by section.
type article struct {
	Title    string
	Sections []string
}

// fullText renders the article as plain text with blank lines between
// sections, which downstream splitting treats as paragraph boundaries.
func (a *article) fullText() string {
	return strings.Join(a.Sections, "\n\n")
}

// parseArticle extracts the title and body sections from PMC (JATS)
// full-text XML. Top-level <sec> elements under <body> become sections;
// an article without any <sec> falls back to per-<p> extraction. The
// decoder walks tokens directly since JATS bodies nest arbitrarily.
func parseArticle(data []byte) (*article, error) {
	a := &article{}
	decoder := xml.NewDecoder(bytes.NewReader(data))

	var paragraphs []string
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case "article-title":
			if a.Title == "" {
				text, err := collectText(decoder, start.Name.Local)
				if err != nil {
					return nil, err
				}
				a.Title = text
			}
		case "body":
			sections, bodyParagraphs, err := parseBody(decoder)
			if err != nil {
				return nil, err
			}
			a.Sections = append(a.Sections, sections...)
			paragraphs = append(paragraphs, bodyParagraphs...)
		}
	}

	// Paragraph fallback for articles whose body has no <sec> at all.
	if len(a.Sections) == 0 {
		a.Sections = paragraphs
	}
	if len(a.Sections) == 0 {
		return a, ErrNoFullText
	}
	return a, nil
}

// parseBody walks a <body> subtree, returning the text of each
// top-level <sec> and, separately, the text of each <p> that is not
// inside a <sec> (the fallback material).
func parseBody(decoder *xml.Decoder) (sections []string, paragraphs []string, err error) {
	depth := 0
	for {
		tok, err := decoder.Token()
		if err != nil {
			return nil, nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Local == "sec" && depth == 0:
				text, err := collectText(decoder, "sec")
				if err != nil {
					return nil, nil, err
				}
				if text != "" {
					sections = append(sections, text)
				}
			case t.Name.Local == "p" && depth == 0:
				text, err := collectText(decoder, "p")
				if err != nil {
					return nil, nil, err
				}
				if text != "" {
					paragraphs = append(paragraphs, text)
				}
			default:
				depth++
			}
		case xml.EndElement:
			if depth == 0 {
				// End of <body>.
				return sections, paragraphs, nil
			}
			depth--
		}
	}
}

// collectText consumes tokens until the matching end element, joining
// all character data with single spaces.
func collectText(decoder *xml.Decoder, name string) (string, error) {
	var parts []string
	depth := 0
	for {
		tok, err := decoder.Token()
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.CharData:
			if s := strings.TrimSpace(string(t)); s != "" {
				parts = append(parts, s)
			}
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 && t.Name.Local == name {
				return strings.Join(parts, " "), nil
			}
			if depth > 0 {
				depth--
			}
		}
	}
}
