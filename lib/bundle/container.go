// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zip"
)

// The container is a plain zip file: one Stored entry per encrypted
// object (age ciphertext does not compress) and a Deflated
// manifest.yml as the final entry. Zip gives random access per
// object, survives being copied around by generic tooling, and is
// inspectable with stock archivers when all you need is the
// manifest.

// containerWriter wraps a zip.Writer with the bundle's entry
// conventions. The caller controls ordering; writeManifest must be
// the last write before close.
type containerWriter struct {
	archive *zip.Writer
}

func newContainerWriter(w io.Writer) *containerWriter {
	return &containerWriter{archive: zip.NewWriter(w)}
}

// writeEntry adds one encrypted object, uncompressed.
func (writer *containerWriter) writeEntry(name string, ciphertext []byte) error {
	entry, err := writer.archive.CreateHeader(&zip.FileHeader{
		Name:   name,
		Method: zip.Store,
	})
	if err != nil {
		return fmt.Errorf("bundle: creating entry %s: %w", name, err)
	}
	if _, err := entry.Write(ciphertext); err != nil {
		return fmt.Errorf("bundle: writing entry %s: %w", name, err)
	}
	return nil
}

// copyEntry transplants an entry from another container without
// recompressing or re-encrypting. Used by rollover, which replaces
// the manifest but must not touch object ciphertext.
func (writer *containerWriter) copyEntry(file *zip.File) error {
	if err := writer.archive.Copy(file); err != nil {
		return fmt.Errorf("bundle: copying entry %s: %w", file.Name, err)
	}
	return nil
}

// writeManifest encodes and adds the manifest.
func (writer *containerWriter) writeManifest(manifest Manifest) error {
	encoded, err := manifest.Encode()
	if err != nil {
		return err
	}
	entry, err := writer.archive.CreateHeader(&zip.FileHeader{
		Name:   ManifestName,
		Method: zip.Deflate,
	})
	if err != nil {
		return fmt.Errorf("bundle: creating manifest entry: %w", err)
	}
	if _, err := entry.Write(encoded); err != nil {
		return fmt.Errorf("bundle: writing manifest: %w", err)
	}
	return nil
}

func (writer *containerWriter) close() error {
	if err := writer.archive.Close(); err != nil {
		return fmt.Errorf("bundle: finishing container: %w", err)
	}
	return nil
}

// containerReader indexes an opened container: the decoded manifest
// plus one Entry per object file, in archive order.
type containerReader struct {
	archive  *zip.ReadCloser
	manifest Manifest
	entries  []Entry
	files    map[string]*zip.File
}

// openContainer opens and structurally checks a container: the
// manifest must be present, decodable, and the final entry; every
// other entry name must parse; no name may repeat.
func openContainer(path string) (*containerReader, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("bundle: opening container: %w", err)
	}

	reader := &containerReader{
		archive: archive,
		files:   make(map[string]*zip.File, len(archive.File)),
	}
	manifestSeen := false
	for index, file := range archive.File {
		if _, duplicate := reader.files[file.Name]; duplicate {
			archive.Close()
			return nil, fmt.Errorf("%w: %s appears twice", ErrPathCollision, file.Name)
		}
		reader.files[file.Name] = file

		if file.Name == ManifestName {
			if index != len(archive.File)-1 {
				archive.Close()
				return nil, fmt.Errorf("bundle: manifest is not the final entry; the bundle was not sealed by this tool")
			}
			manifestSeen = true
			continue
		}

		entry, err := parseEntryName(file.Name)
		if err != nil {
			archive.Close()
			return nil, err
		}
		reader.entries = append(reader.entries, entry)
	}
	if !manifestSeen {
		archive.Close()
		return nil, fmt.Errorf("bundle: container has no %s", ManifestName)
	}

	encoded, err := reader.readFile(ManifestName)
	if err != nil {
		archive.Close()
		return nil, err
	}
	manifest, err := DecodeManifest(encoded)
	if err != nil {
		archive.Close()
		return nil, err
	}
	reader.manifest = manifest
	return reader, nil
}

// readFile reads one entry's bytes.
func (reader *containerReader) readFile(name string) ([]byte, error) {
	file, ok := reader.files[name]
	if !ok {
		return nil, fmt.Errorf("bundle: no entry %s", name)
	}
	stream, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("bundle: opening entry %s: %w", name, err)
	}
	defer stream.Close()

	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("bundle: reading entry %s: %w", name, err)
	}
	return data, nil
}

func (reader *containerReader) close() error {
	return reader.archive.Close()
}
