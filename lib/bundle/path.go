// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bureau-foundation/reliquary/lib/object"
	"github.com/bureau-foundation/reliquary/lib/swhid"
)

// entryExtension marks every encrypted object entry in the container.
const entryExtension = ".age"

// kindDirectories maps each object kind to its container directory.
// These names are format constants: changing one breaks every sealed
// bundle.
var kindDirectories = map[object.Kind]string{
	object.KindOrigin:            "origins",
	object.KindOriginVisit:       "origin_visits",
	object.KindOriginVisitStatus: "origin_visit_statuses",
	object.KindSnapshot:          "snapshots",
	object.KindRelease:           "releases",
	object.KindRevision:          "revisions",
	object.KindDirectory:         "directories",
	object.KindContent:           "contents",
	object.KindSkippedContent:    "skipped_contents",
}

// directoryKinds is the inverse of kindDirectories, for the reader.
var directoryKinds = func() map[string]object.Kind {
	inverse := make(map[string]object.Kind, len(kindDirectories))
	for kind, directory := range kindDirectories {
		inverse[directory] = kind
	}
	return inverse
}()

// Entry locates one encrypted object inside a bundle: its container
// path plus the naming metadata parsed from (or used to build) the
// file name.
type Entry struct {
	// Name is the full container path, e.g.
	// "origin_visits/swh_1_ori_8156…b18_2.age".
	Name string

	// Kind is the object kind, implied by the directory.
	Kind object.Kind

	// ID is the object's SWHID.
	ID swhid.SWHID

	// Visit disambiguates origin_visit and origin_visit_status
	// entries, which share their origin's SWHID.
	Visit int64

	// Date further disambiguates origin_visit_status entries (one
	// visit has many statuses). ISO 8601, as carried in the object.
	Date string

	// Ordinal disambiguates skipped_content entries that share a
	// SWHID, counting per identifier from 1.
	Ordinal int
}

// entryName derives the container path for an object. The SWHID's
// colons become underscores so the name is safe on every filesystem;
// kinds whose SWHID is not unique per instance append discriminators
// (see Entry). ordinal is consulted only for skipped contents.
func entryName(o object.Object, ordinal int) (Entry, error) {
	entry := Entry{Kind: o.Kind, ID: o.ID}
	base := strings.ReplaceAll(o.ID.String(), ":", "_")

	switch o.Kind {
	case object.KindOriginVisit:
		visit, ok := o.Visit()
		if !ok {
			return Entry{}, fmt.Errorf("bundle: origin_visit %s has no visit counter", o.ID)
		}
		entry.Visit = visit
		base += "_" + strconv.FormatInt(visit, 10)

	case object.KindOriginVisitStatus:
		visit, ok := o.Visit()
		if !ok {
			return Entry{}, fmt.Errorf("bundle: origin_visit_status %s has no visit counter", o.ID)
		}
		date, ok := o.VisitDate()
		if !ok {
			return Entry{}, fmt.Errorf("bundle: origin_visit_status %s has no date", o.ID)
		}
		entry.Visit = visit
		entry.Date = date
		base += "_" + strconv.FormatInt(visit, 10) + "_" + strings.ReplaceAll(date, ":", "_")

	case object.KindSkippedContent:
		if ordinal < 1 {
			return Entry{}, fmt.Errorf("bundle: skipped_content %s needs an ordinal of at least 1", o.ID)
		}
		entry.Ordinal = ordinal
		base += "_" + strconv.Itoa(ordinal)
	}

	entry.Name = kindDirectories[o.Kind] + "/" + base + entryExtension
	return entry, nil
}

// swhidNameLength is the length of a SWHID rendered with underscores,
// the fixed prefix of every entry file name.
const swhidNameLength = len("swh_1_cnt_") + 2*swhid.DigestLength

// parseEntryName maps a container path back to its Entry. Rejects
// names in unknown directories, without the .age extension, or whose
// discriminators do not match the directory's kind.
func parseEntryName(name string) (Entry, error) {
	directory, file, ok := strings.Cut(name, "/")
	if !ok {
		return Entry{}, fmt.Errorf("bundle: entry %q is not inside a kind directory", name)
	}
	kind, ok := directoryKinds[directory]
	if !ok {
		return Entry{}, fmt.Errorf("bundle: entry %q is in unknown directory %q", name, directory)
	}
	stem, ok := strings.CutSuffix(file, entryExtension)
	if !ok {
		return Entry{}, fmt.Errorf("bundle: entry %q does not end in %s", name, entryExtension)
	}
	if len(stem) < swhidNameLength {
		return Entry{}, fmt.Errorf("bundle: entry %q is too short to carry an identifier", name)
	}

	id, err := swhid.Parse(strings.Replace(stem[:swhidNameLength], "_", ":", 3))
	if err != nil {
		return Entry{}, fmt.Errorf("bundle: entry %q: %w", name, err)
	}

	entry := Entry{Name: name, Kind: kind, ID: id}
	rest := stem[swhidNameLength:]

	switch kind {
	case object.KindOriginVisit:
		visit, err := parseDiscriminator(name, rest)
		if err != nil {
			return Entry{}, err
		}
		entry.Visit = visit

	case object.KindOriginVisitStatus:
		if !strings.HasPrefix(rest, "_") {
			return Entry{}, fmt.Errorf("bundle: entry %q is missing its visit and date", name)
		}
		visitPart, datePart, ok := strings.Cut(rest[1:], "_")
		if !ok {
			return Entry{}, fmt.Errorf("bundle: entry %q is missing its date", name)
		}
		visit, err := strconv.ParseInt(visitPart, 10, 64)
		if err != nil {
			return Entry{}, fmt.Errorf("bundle: entry %q has a bad visit counter: %w", name, err)
		}
		entry.Visit = visit
		entry.Date = strings.ReplaceAll(datePart, "_", ":")

	case object.KindSkippedContent:
		ordinal, err := parseDiscriminator(name, rest)
		if err != nil {
			return Entry{}, err
		}
		entry.Ordinal = int(ordinal)

	default:
		if rest != "" {
			return Entry{}, fmt.Errorf("bundle: entry %q has unexpected trailing %q", name, rest)
		}
	}
	return entry, nil
}

// parseDiscriminator parses the single "_<n>" suffix used by visit
// and skipped-content entry names.
func parseDiscriminator(name, rest string) (int64, error) {
	digits, ok := strings.CutPrefix(rest, "_")
	if !ok {
		return 0, fmt.Errorf("bundle: entry %q is missing its discriminator", name)
	}
	value, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || value < 1 {
		return 0, fmt.Errorf("bundle: entry %q has a bad discriminator %q", name, digits)
	}
	return value, nil
}
