package bundle

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
	"github.com/opencontainers/go-digest"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

const (
	// TypeKind is the schema kind of the persisted artifact.
	TypeKind = "bundle.licenses.software"
	// SchemaVersion is the schema version written by this implementation.
	SchemaVersion = "v1"
	// Type tags every artifact written by this implementation.
	Type = TypeKind + "/" + SchemaVersion

	// DefaultFileName is the conventional artifact name next to the build
	// output.
	DefaultFileName = "LICENSE-3RD-PARTY"
)

var (
	// ErrSchemaMismatch is returned when an artifact carries a different
	// schema kind or an incompatible major version.
	ErrSchemaMismatch = errors.New("license bundle schema mismatch")
	// ErrCorrupt is returned when an artifact is not valid JSON, does not
	// validate against the bundle schema, or fails its digest check.
	ErrCorrupt = errors.New("license bundle corrupt")
)

//go:embed schema.json
var schemaJSON []byte

// document is the on-disk shape of a bundle.
type document struct {
	Type     string       `json:"type"`
	Digest   string       `json:"digest"`
	Packages []Resolution `json:"packages"`
}

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("parsing embedded bundle schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("bundle.schema.json", doc); err != nil {
		return nil, fmt.Errorf("adding embedded bundle schema: %w", err)
	}
	schema, err := compiler.Compile("bundle.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compiling embedded bundle schema: %w", err)
	}
	return schema, nil
})

// MarshalJSON serializes the bundle into its schema-tagged document form,
// including the digest over the canonicalized package list.
func (b *Bundle) MarshalJSON() ([]byte, error) {
	dgst, err := b.contentDigest()
	if err != nil {
		return nil, err
	}
	return json.Marshal(document{
		Type:     Type,
		Digest:   dgst.String(),
		Packages: b.resolutions,
	})
}

func (b *Bundle) contentDigest() (digest.Digest, error) {
	raw, err := json.Marshal(b.resolutions)
	if err != nil {
		return "", fmt.Errorf("marshalling resolutions: %w", err)
	}
	canonical, err := jsoncanonicalizer.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalizing resolutions: %w", err)
	}
	return digest.SHA256.FromBytes(canonical), nil
}

// Persist writes the bundle to destination. The write is atomic from the
// reader's point of view: the document is written to a temporary file in the
// destination directory and then renamed over the destination, so a failed
// write leaves any previous artifact untouched.
func (b *Bundle) Persist(destination string) (err error) {
	data, err := b.MarshalJSON()
	if err != nil {
		return fmt.Errorf("serializing license bundle: %w", err)
	}

	dir := filepath.Dir(destination)
	tmp, err := os.CreateTemp(dir, filepath.Base(destination)+"-*")
	if err != nil {
		return fmt.Errorf("creating temporary bundle file in %q: %w", dir, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temporary bundle file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing temporary bundle file: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("setting bundle file permissions: %w", err)
	}
	if err = os.Rename(tmp.Name(), destination); err != nil {
		return fmt.Errorf("replacing %q: %w", destination, err)
	}
	return nil
}

// Load reads and validates a bundle artifact from path.
func Load(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading license bundle %q: %w", path, err)
	}
	b, err := FromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("loading license bundle %q: %w", path, err)
	}
	return b, nil
}

// FromBytes deserializes a bundle artifact, typically bytes embedded into
// the consuming program via go:embed. The artifact is checked for schema
// compatibility, validated against the bundle JSON Schema, and its digest is
// verified before any resolution is returned.
func FromBytes(data []byte) (*Bundle, error) {
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: not valid JSON: %v", ErrCorrupt, err)
	}

	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := checkType(probe.Type); err != nil {
		return nil, err
	}

	schema, err := compiledSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(instance); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	b := New(doc.Packages)
	dgst, err := b.contentDigest()
	if err != nil {
		return nil, err
	}
	if dgst.String() != doc.Digest {
		return nil, fmt.Errorf("%w: digest %s does not match content digest %s", ErrCorrupt, doc.Digest, dgst)
	}

	for _, res := range b.resolutions {
		if (res.Source == SourceUnresolved) != (len(res.Texts) == 0) {
			return nil, fmt.Errorf("%w: package %s has source %s with %d texts", ErrCorrupt, res.ID(), res.Source, len(res.Texts))
		}
	}
	return b, nil
}

// checkType verifies that typ names the bundle kind with a major version
// this implementation can read.
func checkType(typ string) error {
	kind, version, ok := strings.Cut(typ, "/")
	if !ok || kind != TypeKind {
		return fmt.Errorf("%w: artifact type %q, expected kind %q", ErrSchemaMismatch, typ, TypeKind)
	}
	major, _, _ := strings.Cut(strings.TrimPrefix(version, "v"), ".")
	n, err := strconv.Atoi(major)
	if err != nil {
		return fmt.Errorf("%w: malformed schema version %q", ErrSchemaMismatch, version)
	}
	if n != 1 {
		return fmt.Errorf("%w: artifact schema version %q, this reader supports %s", ErrSchemaMismatch, version, SchemaVersion)
	}
	return nil
}
