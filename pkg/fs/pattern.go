package fs

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 retrovault.io Pty Ltd
 */

import (
	"regexp"
	"strings"
)

// Pattern matches directory entries with glob syntax. Matching is
// case-insensitive, following the filesystem's native name semantics.
type Pattern struct {
	raw string
	re  *regexp.Regexp
}

// NewPattern compiles a glob pattern. '*' matches any sequence, '?' any
// single character; all other metacharacters match literally.
func NewPattern(pattern string) *Pattern {

	var sb strings.Builder
	sb.WriteString("(?i)^")

	for _, c := range pattern {
		switch c {
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	sb.WriteString("$")

	return &Pattern{raw: pattern, re: regexp.MustCompile(sb.String())}
}

// Match reports whether the name matches the pattern.
func (p *Pattern) Match(name string) bool {
	return p.re.MatchString(name)
}

// IsAbsolute reports whether the pattern is anchored at the volume root.
func (p *Pattern) IsAbsolute() bool {
	return strings.HasPrefix(p.raw, "/") || strings.Contains(p.raw, ":")
}

// Split returns one compiled pattern per path component.
func (p *Pattern) Split() []*Pattern {

	raw := p.raw
	if i := strings.IndexByte(raw, ':'); i >= 0 {
		raw = raw[i+1:]
	}
	raw = strings.TrimLeft(raw, "/")

	var result []*Pattern
	for _, part := range strings.Split(raw, "/") {
		result = append(result, NewPattern(part))
	}
	return result
}

// FindMatching returns all blocks below root whose name matches the
// pattern.
func (v *Volume) FindMatching(root *Block, pattern *Pattern) ([]*Block, error) {

	return v.Find(root, FindOpt{
		Recursive: true,
		Accept:    func(b *Block) bool { return pattern.Match(b.Name()) },
	})
}
