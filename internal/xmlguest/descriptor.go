// Package xmlguest parses the guest descriptor XML obtained from the
// hypervisor collaborator and resolves the XPath-style selectors that
// FileHash module options use to locate configuration files.
//
// Only a small subset of XPath is supported — plain "/a/b/c" element paths,
// an optional trailing "@attr" to select an attribute instead of element
// text, and an optional trailing "text()" as an explicit (and equivalent)
// way to ask for element text. This is deliberately not a general XPath
// engine: the guest descriptor is a small, fixed-shape document (domain
// name, os/kernel path, device sources) and nothing in this core's
// configuration needs predicates, wildcards, or axes beyond child traversal.
// No third-party XPath library appears anywhere in the example pack, so a
// minimal hand-rolled selector is the stdlib-grounded choice here — see
// DESIGN.md for the full justification.
package xmlguest

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// node is a generic XML tree element, built once per descriptor and then
// walked repeatedly by Select.
type node struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Content string     `xml:",chardata"`
	Nodes   []node     `xml:",any"`
}

// Descriptor is a parsed guest XML descriptor, ready for repeated selector
// resolution (one FileHash module may resolve several options against the
// same descriptor).
type Descriptor struct {
	root node
}

// Parse decodes a guest descriptor document.
func Parse(xmlDoc []byte) (*Descriptor, error) {
	var root node
	if err := xml.Unmarshal(xmlDoc, &root); err != nil {
		return nil, fmt.Errorf("xmlguest: parse descriptor: %w", err)
	}
	return &Descriptor{root: root}, nil
}

// Select resolves an XPath-style selector (e.g. "/domain/os/kernel/text()"
// or "/domain/devices/disk/source/@file") against the descriptor and returns
// every matching string value. An empty result is not an error; callers
// that need a match (e.g. FileHash) use SelectOne, which treats an empty
// result as one.
func (d *Descriptor) Select(path string) ([]string, error) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return nil, fmt.Errorf("xmlguest: empty selector")
	}

	// The leading segment must name the document's root element.
	if segments[0] != d.root.XMLName.Local {
		return nil, fmt.Errorf("xmlguest: selector %q does not match root element <%s>", path, d.root.XMLName.Local)
	}

	var attr, wantText string
	rest := segments[1:]
	if len(rest) > 0 {
		last := rest[len(rest)-1]
		switch {
		case strings.HasPrefix(last, "@"):
			attr = strings.TrimPrefix(last, "@")
			rest = rest[:len(rest)-1]
		case last == "text()":
			wantText = last
			rest = rest[:len(rest)-1]
			_ = wantText
		}
	}

	matches := []node{d.root}
	for _, seg := range rest {
		var next []node
		for _, m := range matches {
			for _, child := range m.Nodes {
				if child.XMLName.Local == seg {
					next = append(next, child)
				}
			}
		}
		matches = next
	}

	results := make([]string, 0, len(matches))
	for _, m := range matches {
		if attr != "" {
			for _, a := range m.Attrs {
				if a.Name.Local == attr {
					results = append(results, a.Value)
					break
				}
			}
			continue
		}
		results = append(results, strings.TrimSpace(m.Content))
	}
	return results, nil
}

// SelectOne resolves a selector, requires at least one match, and returns
// the first match in document order; further matches are ignored.
func (d *Descriptor) SelectOne(path string) (string, error) {
	results, err := d.Select(path)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", fmt.Errorf("xmlguest: selector %q matched no nodes", path)
	}
	return results[0], nil
}
