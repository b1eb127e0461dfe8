package bundle

import (
	"bytes"
	"strings"
)

// Format classifies the payload of an uploaded bundle.
type Format string

const (
	FormatBytecode Format = "bytecode"
	FormatScript   Format = "script"
	FormatUnknown  Format = "unknown"
)

// bytecodeMagic is the fixed prefix emitted by the bundler for precompiled
// bundles. Anything starting with it is treated as bytecode regardless of
// the remaining content.
var bytecodeMagic = []byte{0xc6, 0x1f, 0xbc, 0x03}

// scriptPrefixes are common opening tokens of a plain-text bundle. Only the
// leading bytes are scanned; a match classifies the payload as script.
var scriptPrefixes = []string{
	"#!",
	"\"use strict\"",
	"'use strict'",
	"var ",
	"let ",
	"const ",
	"function ",
	"import ",
	"!function",
	"(function",
	"//",
	"/*",
}

const detectWindow = 256

// Detect classifies raw bundle bytes. A fixed magic prefix identifies
// bytecode; otherwise the leading bytes are scanned for script-start
// patterns. Everything else is unknown, which validation always rejects.
func Detect(data []byte) Format {
	if bytes.HasPrefix(data, bytecodeMagic) {
		return FormatBytecode
	}

	window := data
	if len(window) > detectWindow {
		window = window[:detectWindow]
	}
	head := strings.TrimLeft(string(window), " \t\r\n\uFEFF")
	for _, p := range scriptPrefixes {
		if strings.HasPrefix(head, p) {
			return FormatScript
		}
	}
	return FormatUnknown
}
