package bundle

import (
	"bytes"
	"fmt"
	"strings"
)

const (
	// bytecodeMinHeader is the smallest header a precompiled bundle can carry:
	// 4 magic bytes, 1 version byte, 3 reserved.
	bytecodeMinHeader = 8

	bytecodeVersionMin = 1
	bytecodeVersionMax = 20
)

// Policy bounds what an account may upload.
type Policy struct {
	MinSize        int64
	MaxSize        int64
	AllowedFormats []Format
}

// DefaultPolicy matches the limits applied to new apps.
func DefaultPolicy() Policy {
	return Policy{
		MinSize:        1,
		MaxSize:        50 << 20, // 50 MiB
		AllowedFormats: []Format{FormatBytecode, FormatScript},
	}
}

// Validation is the result of validating raw bundle bytes. Errors block
// acceptance; warnings are advisory and never do.
type Validation struct {
	Valid    bool     `json:"valid"`
	Format   Format   `json:"format"`
	Size     int64    `json:"size"`
	Hash     string   `json:"hash,omitempty"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Validate classifies and structurally checks raw bundle bytes against the
// policy. Pure function: no side effects, same input always yields the same
// result. The content hash is only computed for valid bundles.
func Validate(data []byte, policy Policy) *Validation {
	v := &Validation{
		Format: Detect(data),
		Size:   int64(len(data)),
	}

	if v.Size < policy.MinSize {
		v.addError(fmt.Sprintf("bundle is %d bytes, minimum is %d", v.Size, policy.MinSize))
	}
	if policy.MaxSize > 0 && v.Size > policy.MaxSize {
		v.addError(fmt.Sprintf("bundle is %d bytes, maximum is %d", v.Size, policy.MaxSize))
	}
	if policy.MaxSize > 0 && v.Size <= policy.MaxSize && v.Size*10 >= policy.MaxSize*9 {
		v.addWarning("bundle is within 10% of the maximum allowed size")
	}

	switch v.Format {
	case FormatUnknown:
		v.addError("unrecognized bundle format")
	case FormatBytecode:
		v.checkBytecode(data)
	case FormatScript:
		v.checkScript(data)
	}

	if v.Format != FormatUnknown && !formatAllowed(v.Format, policy.AllowedFormats) {
		v.addError(fmt.Sprintf("format %q is not allowed by policy", v.Format))
	}

	v.Valid = len(v.Errors) == 0
	if v.Valid {
		v.Hash = Hash(data)
	}
	return v
}

func (v *Validation) checkBytecode(data []byte) {
	if len(data) < bytecodeMinHeader {
		v.addError(fmt.Sprintf("bytecode header is %d bytes, minimum is %d", len(data), bytecodeMinHeader))
		return
	}
	version := data[len(bytecodeMagic)]
	if version < bytecodeVersionMin || version > bytecodeVersionMax {
		v.addError(fmt.Sprintf("implausible bytecode version byte %d", version))
	}
}

func (v *Validation) checkScript(data []byte) {
	if bytes.IndexByte(data, 0x00) >= 0 {
		v.addError("script contains null bytes")
	}
	if bytes.Contains(data, []byte("�")) {
		v.addError("script contains unicode replacement characters")
	}
	if len(data) > 0 && !strings.HasSuffix(string(data), "\n") {
		v.addWarning("script does not end with a newline")
	}
}

func (v *Validation) addError(msg string)   { v.Errors = append(v.Errors, msg) }
func (v *Validation) addWarning(msg string) { v.Warnings = append(v.Warnings, msg) }

func formatAllowed(f Format, allowed []Format) bool {
	for _, a := range allowed {
		if a == f {
			return true
		}
	}
	return false
}
