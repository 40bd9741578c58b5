package jsonutil

import (
	"strings"

	"github.com/tidwall/gjson"
)

const codeFence = "```"

// ExtractObject pulls the earliest valid JSON object out of free model text,
// whether it sits in a ``` block or in bare prose.
func ExtractObject(raw string) (string, bool) {
	out, _, ok := ExtractObjectWithOffset(raw)
	return out, ok
}

// ExtractObjectWithOffset also reports where the object starts in raw.
func ExtractObjectWithOffset(raw string) (string, int, bool) {
	if strings.TrimSpace(raw) == "" {
		return "", -1, false
	}
	obj, off, ok := firstObject(raw)
	for _, f := range fences(raw) {
		if ok && f[0] >= off {
			break
		}
		if fobj, rel, fok := firstObject(raw[f[0]:f[1]]); fok && (!ok || f[0]+rel < off) {
			return fobj, f[0] + rel, true
		}
	}
	return obj, off, ok
}

// fences returns the [start, end) bodies of every closed ``` block, with any
// language tag line removed.
func fences(raw string) [][2]int {
	var out [][2]int
	pos := 0
	for {
		open := strings.Index(raw[pos:], codeFence)
		if open == -1 {
			return out
		}
		bodyStart := pos + open + len(codeFence)
		closeIdx := strings.Index(raw[bodyStart:], codeFence)
		if closeIdx == -1 {
			return out
		}
		bodyEnd := bodyStart + closeIdx
		if nl := strings.IndexByte(raw[bodyStart:bodyEnd], '\n'); nl != -1 {
			tag := strings.TrimSpace(raw[bodyStart : bodyStart+nl])
			if tag != "" && !strings.ContainsAny(tag, "{[") {
				bodyStart += nl + 1
			}
		}
		out = append(out, [2]int{bodyStart, bodyEnd})
		pos = bodyEnd + len(codeFence)
	}
}

// firstObject tries every '{' in turn and keeps the first balanced span that
// parses as JSON.
func firstObject(s string) (string, int, bool) {
	for from := 0; from < len(s); {
		i := strings.IndexByte(s[from:], '{')
		if i == -1 {
			break
		}
		start := from + i
		if end, ok := matchBrace(s, start); ok {
			if cand := s[start : end+1]; gjson.Valid(cand) {
				return strings.TrimSpace(cand), start, true
			}
		}
		from = start + 1
	}
	return "", -1, false
}

// matchBrace finds the '}' closing the '{' at start, ignoring braces inside
// string literals.
func matchBrace(s string, start int) (int, bool) {
	depth := 0
	inString, escape := false, false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escape:
				escape = false
			case ch == '\\':
				escape = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
