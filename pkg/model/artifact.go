package model

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

type ArtifactKind string

const (
	ArtifactKindText  ArtifactKind = "text"
	ArtifactKindAudio ArtifactKind = "audio"
)

type fileType struct {
	kind     ArtifactKind
	mimeType string
}

var supportedExtensions = map[string]fileType{
	".txt": {kind: ArtifactKindText, mimeType: "text/plain"},
	".wav": {kind: ArtifactKindAudio, mimeType: "audio/wav"},
	".mp3": {kind: ArtifactKindAudio, mimeType: "audio/mpeg"},
	".m4a": {kind: ArtifactKindAudio, mimeType: "audio/mp4"},
}

// Artifact is an uploaded file. It is never mutated; a new upload replaces it.
type Artifact struct {
	Name    string
	Kind    ArtifactKind
	Content []byte
}

// NewArtifact classifies name by extension and copies content.
func NewArtifact(name string, content []byte) (*Artifact, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("artifact name is required")
	}

	kind, err := ArtifactKindFor(name)
	if err != nil {
		return nil, err
	}

	return &Artifact{
		Name:    name,
		Kind:    kind,
		Content: append([]byte(nil), content...),
	}, nil
}

func ArtifactKindFor(name string) (ArtifactKind, error) {
	ft, err := lookupFileType(name)
	if err != nil {
		return "", err
	}
	return ft.kind, nil
}

// AudioMIMEType is the content type providers expect for an audio upload.
func AudioMIMEType(name string) (string, error) {
	ft, err := lookupFileType(name)
	if err != nil {
		return "", err
	}
	if ft.kind != ArtifactKindAudio {
		return "", fmt.Errorf("unsupported audio file type %q", strings.ToLower(filepath.Ext(name)))
	}
	return ft.mimeType, nil
}

func lookupFileType(name string) (fileType, error) {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(name)))
	ft, ok := supportedExtensions[ext]
	if !ok {
		return fileType{}, fmt.Errorf("unsupported file type %q: expected one of .txt, .wav, .mp3, .m4a", ext)
	}
	return ft, nil
}

func (a *Artifact) Extension() string {
	if a == nil {
		return ""
	}
	return strings.ToLower(filepath.Ext(a.Name))
}
