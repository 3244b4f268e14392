package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/payrox/manifest-core/pkg/manifest"
)

// filesystemArtifactResolver is manifestctl's demonstration implementation
// of the artifact-resolver contract (design §6): it reads one JSON file
// per contract name from <dir>/artifacts/<contract>.json. A real deploy
// tool would resolve artifacts from a compiler's build output instead;
// this one exists only to give the CLI something concrete to run against.
type filesystemArtifactResolver struct {
	artifactsDir string
}

func newFilesystemArtifactResolver(rootDir string) *filesystemArtifactResolver {
	return &filesystemArtifactResolver{artifactsDir: filepath.Join(rootDir, "artifacts")}
}

type artifactFile struct {
	CreationBytecode string               `json:"creationBytecode"`
	RuntimeBytecode  string               `json:"runtimeBytecode"`
	Interface        []functionDescriptor `json:"interface"`
}

type functionDescriptor struct {
	Name   string   `json:"name"`
	Inputs []string `json:"inputs"`
}

func (r *filesystemArtifactResolver) Resolve(contract string) (*manifest.FacetArtifact, error) {
	path := filepath.Join(r.artifactsDir, contract+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact %q: %w", contract, err)
	}

	var raw artifactFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse artifact %q: %w", contract, err)
	}

	creation, err := decodeHexBytecode(raw.CreationBytecode)
	if err != nil {
		return nil, fmt.Errorf("artifact %q: creationBytecode: %w", contract, err)
	}
	runtime, err := decodeHexBytecode(raw.RuntimeBytecode)
	if err != nil {
		return nil, fmt.Errorf("artifact %q: runtimeBytecode: %w", contract, err)
	}

	iface := make([]manifest.FunctionDescriptor, len(raw.Interface))
	for i, fn := range raw.Interface {
		iface[i] = manifest.FunctionDescriptor{Name: fn.Name, Inputs: fn.Inputs}
	}

	return &manifest.FacetArtifact{
		CreationBytecode: creation,
		RuntimeBytecode:  runtime,
		Interface:        iface,
	}, nil
}

func decodeHexBytecode(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	return hex.DecodeString(s)
}
