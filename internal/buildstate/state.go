// Package buildstate persists what the previous build in a build directory
// was configured with, so settings that timestamps cannot see (optimization
// level, target, debug info) still invalidate derived objects.
package buildstate

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"fortio.org/safecast"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"monowasm/internal/bytebuf"
	"monowasm/internal/config"
)

// FileName is the ledger file inside the build directory.
const FileName = ".monowasm-state"

// Current schema version - increment when State changes shape.
const schemaVersion uint16 = 2

var magic = [4]byte{'M', 'W', 'S', 'T'}

const headerSize = len(magic) + 4

// ErrCorrupt reports a ledger that cannot be decoded.
var ErrCorrupt = errors.New("corrupt build state")

// State describes one finished build.
type State struct {
	Schema  uint16
	BuildID string
	// Fingerprint covers the settings of object code generation.
	Fingerprint string
	// ManagedFingerprint covers the settings of the IL linker and the AOT
	// compiler.
	ManagedFingerprint string
	Mode               string
	// Inputs are the file names of the input assemblies, entry first.
	Inputs []string
	// Assemblies are the file names of the linked assemblies.
	Assemblies []string
}

// Fingerprint summarizes the settings that change generated code without
// touching any input file.
func Fingerprint(cfg config.Context) string {
	return fmt.Sprintf("opt=%s;triple=%s;debug=%t", cfg.Opt, cfg.Triple, cfg.Debug)
}

// ManagedFingerprint summarizes the settings that change linked assemblies
// and bitcode without touching any input file.
func ManagedFingerprint(cfg config.Context) string {
	return fmt.Sprintf("debug=%t", cfg.Debug)
}

// New returns the state for a build of inputs with cfg, under a fresh build
// id.
func New(cfg config.Context, inputs []string) State {
	return State{
		Schema:             schemaVersion,
		BuildID:            uuid.NewString(),
		Fingerprint:        Fingerprint(cfg),
		ManagedFingerprint: ManagedFingerprint(cfg),
		Mode:               cfg.Mode(),
		Inputs:             append([]string(nil), inputs...),
	}
}

// Changes lists what differs between the previous build prev and st.
type Changes struct {
	// Inputs is set when the input assemblies were added, removed or
	// reordered.
	Inputs bool
	// Managed is set when linked assemblies and bitcode are out of date.
	Managed bool
	// Objects is set when object files are out of date.
	Objects bool
}

// Diff compares st with the previous build prev.
func (st State) Diff(prev State) Changes {
	return Changes{
		Inputs:  !slices.Equal(prev.Inputs, st.Inputs),
		Managed: prev.ManagedFingerprint != st.ManagedFingerprint,
		Objects: prev.Fingerprint != st.Fingerprint,
	}
}

// Path returns the ledger path for buildDir.
func Path(buildDir string) string {
	return filepath.Join(buildDir, FileName)
}

// Load reads the ledger in buildDir. A missing ledger, or one written by
// another schema version, yields ok=false without error.
func Load(buildDir string) (st State, ok bool, err error) {
	// #nosec G304 -- ledger lives in the build dir
	data, err := os.ReadFile(Path(buildDir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return st, false, nil
		}
		return st, false, fmt.Errorf("failed to read build state: %w", err)
	}
	if len(data) < headerSize || !bytes.Equal(data[:len(magic)], magic[:]) {
		return st, false, fmt.Errorf("%w: bad header", ErrCorrupt)
	}
	size := binary.LittleEndian.Uint32(data[len(magic):headerSize])
	payload := data[headerSize:]
	n, err := safecast.Conv[int](size)
	if err != nil || n != len(payload) {
		return st, false, fmt.Errorf("%w: payload is %d bytes, header says %d", ErrCorrupt, len(payload), size)
	}
	if err := msgpack.Unmarshal(payload, &st); err != nil {
		return State{}, false, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if st.Schema != schemaVersion {
		return State{}, false, nil
	}
	return st, true, nil
}

// Save writes st into buildDir, replacing any previous ledger atomically.
func Save(buildDir string, st State) error {
	buf := bytebuf.New(256)
	if _, err := buf.Write(magic[:]); err != nil {
		return err
	}
	// length placeholder, patched once the payload size is known
	if _, err := buf.Write(make([]byte, 4)); err != nil {
		return err
	}
	enc := msgpack.NewEncoder(buf)
	if err := enc.Encode(&st); err != nil {
		return fmt.Errorf("failed to encode build state: %w", err)
	}
	size, err := safecast.Conv[uint32](buf.Len() - headerSize)
	if err != nil {
		return fmt.Errorf("build state too large: %w", err)
	}
	var lenBytes [4]byte
	binary.LittleEndian.PutUint32(lenBytes[:], size)
	if _, err := buf.WriteAt(lenBytes[:], int64(len(magic))); err != nil {
		return err
	}

	if err := os.MkdirAll(buildDir, 0o750); err != nil {
		return fmt.Errorf("failed to create build dir: %w", err)
	}
	f, err := os.CreateTemp(buildDir, FileName+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := buf.WriteTo(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write build state: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	// Атомарная замена
	return os.Rename(tmp, Path(buildDir))
}
