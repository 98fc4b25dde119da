// Package irlink loads LLVM IR modules and links them into one program-wide
// module.
package irlink

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/llir/llvm/asm"
	"github.com/llir/llvm/ir"
)

var (
	bitcodeMagic = []byte{'B', 'C', 0xC0, 0xDE}
	// 0x0B17C0DE, little-endian
	wrapperMagic = []byte{0xDE, 0xC0, 0x17, 0x0B}
)

// IsBitcode reports whether data starts like a binary bitcode file rather
// than textual IR.
func IsBitcode(data []byte) bool {
	return bytes.HasPrefix(data, bitcodeMagic) || bytes.HasPrefix(data, wrapperMagic)
}

// ParseError reports malformed IR input. Line is zero when the parser did not
// say where the problem is.
type ParseError struct {
	File string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Msg)
}

var lineRe = regexp.MustCompile(`(?:line |:)(\d+)(?::\d+)?`)

// Parse parses textual IR read from path.
func Parse(path string, data []byte) (*ir.Module, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ParseError{File: path, Msg: "empty IR module"}
	}
	if IsBitcode(data) {
		return nil, &ParseError{File: path, Msg: "binary bitcode must be disassembled before parsing"}
	}
	m, err := asm.ParseBytes(path, data)
	if err != nil {
		return nil, newParseError(path, err)
	}
	return m, nil
}

// LoadFile reads and parses the textual IR module at path.
func LoadFile(path string) (*ir.Module, error) {
	// #nosec G304 -- path comes from the build plan
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read IR module: %w", err)
	}
	return Parse(path, data)
}

func newParseError(path string, err error) *ParseError {
	msg := strings.TrimSpace(err.Error())
	msg = strings.TrimPrefix(msg, path+":")
	pe := &ParseError{File: path, Msg: strings.TrimSpace(msg)}
	if m := lineRe.FindStringSubmatch(err.Error()); m != nil {
		if n, convErr := strconv.Atoi(m[1]); convErr == nil {
			pe.Line = n
		}
	}
	return pe
}
