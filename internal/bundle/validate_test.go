package bundle

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bytecodeFixture(version byte, size int) []byte {
	data := make([]byte, size)
	copy(data, bytecodeMagic)
	if size > len(bytecodeMagic) {
		data[len(bytecodeMagic)] = version
	}
	return data
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Format
	}{
		{"bytecode magic", bytecodeFixture(5, 16), FormatBytecode},
		{"use strict", []byte(`"use strict";var a=1;`), FormatScript},
		{"single quote strict", []byte(`'use strict';`), FormatScript},
		{"var", []byte("var foo = 1;\n"), FormatScript},
		{"iife", []byte("!function(){}();"), FormatScript},
		{"paren iife", []byte("(function(){})();"), FormatScript},
		{"shebang", []byte("#!/usr/bin/env node\n"), FormatScript},
		{"leading whitespace", []byte("\n\t  const x = 1;"), FormatScript},
		{"leading bom", []byte("\uFEFF\"use strict\";"), FormatScript},
		{"line comment", []byte("// bundled output\nvar a;"), FormatScript},
		{"binary junk", []byte{0xff, 0xd8, 0xff, 0xe0, 0x00}, FormatUnknown},
		{"empty", nil, FormatUnknown},
		{"plain text", []byte("hello world"), FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.data))
		})
	}
}

func TestValidate_Bytecode(t *testing.T) {
	v := Validate(bytecodeFixture(5, 64), DefaultPolicy())

	assert.True(t, v.Valid)
	assert.Equal(t, FormatBytecode, v.Format)
	assert.Equal(t, int64(64), v.Size)
	assert.NotEmpty(t, v.Hash)
	assert.Empty(t, v.Errors)
}

func TestValidate_Bytecode_ShortHeader(t *testing.T) {
	v := Validate(bytecodeFixture(5, 6), DefaultPolicy())

	assert.False(t, v.Valid)
	require.Len(t, v.Errors, 1)
	assert.Contains(t, v.Errors[0], "header")
	assert.Empty(t, v.Hash, "invalid bundles must not carry a hash")
}

func TestValidate_Bytecode_BadVersion(t *testing.T) {
	for _, version := range []byte{0, 21, 200} {
		v := Validate(bytecodeFixture(version, 64), DefaultPolicy())

		assert.False(t, v.Valid)
		require.NotEmpty(t, v.Errors)
		assert.Contains(t, v.Errors[0], "version")
	}
}

func TestValidate_Script(t *testing.T) {
	v := Validate([]byte("var bundle = {};\n"), DefaultPolicy())

	assert.True(t, v.Valid)
	assert.Equal(t, FormatScript, v.Format)
	assert.Empty(t, v.Errors)
}

func TestValidate_Script_NullBytes(t *testing.T) {
	v := Validate([]byte("var a = 1;\x00var b = 2;\n"), DefaultPolicy())

	assert.False(t, v.Valid)
	require.Len(t, v.Errors, 1)
	assert.Contains(t, v.Errors[0], "null bytes")
}

func TestValidate_Script_ReplacementChars(t *testing.T) {
	v := Validate([]byte("var a = \"�\";\n"), DefaultPolicy())

	assert.False(t, v.Valid)
	require.Len(t, v.Errors, 1)
	assert.Contains(t, v.Errors[0], "replacement")
}

func TestValidate_Script_MissingTrailingNewline(t *testing.T) {
	v := Validate([]byte("var a = 1;"), DefaultPolicy())

	assert.True(t, v.Valid, "warnings must not block acceptance")
	require.Len(t, v.Warnings, 1)
	assert.Contains(t, v.Warnings[0], "newline")
}

func TestValidate_Unknown_AlwaysInvalid(t *testing.T) {
	v := Validate([]byte{0x01, 0x02, 0x03, 0x04}, DefaultPolicy())

	assert.False(t, v.Valid)
	assert.Equal(t, FormatUnknown, v.Format)
}

func TestValidate_SizeBounds(t *testing.T) {
	policy := Policy{MinSize: 10, MaxSize: 100, AllowedFormats: []Format{FormatScript}}

	v := Validate([]byte("var a;\n"), policy)
	assert.False(t, v.Valid)
	assert.Contains(t, v.Errors[0], "minimum")

	big := []byte("var a = \"" + strings.Repeat("x", 200) + "\";\n")
	v = Validate(big, policy)
	assert.False(t, v.Valid)
	assert.Contains(t, v.Errors[0], "maximum")
}

func TestValidate_NearMaxSizeWarning(t *testing.T) {
	policy := Policy{MinSize: 1, MaxSize: 100, AllowedFormats: []Format{FormatScript}}
	data := append([]byte("var a=\""), bytes.Repeat([]byte("x"), 85)...)
	data = append(data, []byte("\";\n")...)
	require.LessOrEqual(t, len(data), 100)

	v := Validate(data, policy)

	assert.True(t, v.Valid)
	require.NotEmpty(t, v.Warnings)
	assert.Contains(t, v.Warnings[0], "maximum allowed size")
}

func TestValidate_PolicyFormatRestriction(t *testing.T) {
	policy := Policy{MinSize: 1, MaxSize: 1 << 20, AllowedFormats: []Format{FormatBytecode}}

	v := Validate([]byte("var a = 1;\n"), policy)

	assert.False(t, v.Valid)
	require.Len(t, v.Errors, 1)
	assert.Contains(t, v.Errors[0], "not allowed by policy")
}

func TestValidate_Pure(t *testing.T) {
	data := []byte("var pure = true;\n")

	first := Validate(data, DefaultPolicy())
	second := Validate(data, DefaultPolicy())

	assert.Equal(t, first, second)
}
