// Package lua parses .lua credential files into depot records.
//
// The accepted grammar is deliberately strict: one statement per line,
// a key-binding statement and a manifest-binding statement per depot.
// Anything else (beyond comments and blank lines) means the file is not a
// credential bundle this pipeline understands.
package lua

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/depotkit/depotkit/pkg/errors"
	"github.com/depotkit/depotkit/pkg/types"
)

// KeyLength is the expected decryption key length in hex characters.
const KeyLength = 64

var (
	// addappid(12345, 1, "HEXKEY")
	reAddAppIDKey = regexp.MustCompile(`^\s*addappid\(\s*(\d+)\s*,\s*1\s*,\s*"([0-9a-fA-F]+)"\s*\)\s*$`)

	// adddepot(12345, "HEXKEY")
	reAddDepotKey = regexp.MustCompile(`^\s*adddepot\(\s*(\d+)\s*,\s*"([0-9a-fA-F]+)"\s*\)\s*$`)

	// setManifestid(12345, "7890", 0) — trailing argument optional
	reSetManifest = regexp.MustCompile(`^\s*setManifestid\(\s*(\d+)\s*,\s*"(\d+)"\s*(?:,\s*\d+\s*)?\)\s*$`)

	// addappid(12345) — the bundle's own app id, tolerated noise
	reAddAppIDBare = regexp.MustCompile(`^\s*addappid\(\s*(\d+)\s*\)\s*$`)
)

// AppIDFromFilename extracts the application id from a credential filename.
// The name must be a bare non-negative integer with a .lua extension.
func AppIDFromFilename(name string) (uint32, error) {
	base := filepath.Base(name)
	if !strings.EqualFold(filepath.Ext(base), ".lua") {
		return 0, errors.Newf(errors.ErrNaming, "credential file %q does not have a .lua extension", base)
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	appID, err := strconv.ParseUint(stem, 10, 32)
	if err != nil {
		return 0, errors.Newf(errors.ErrNaming, "credential file %q does not encode a numeric application id", base)
	}
	return uint32(appID), nil
}

// Parse extracts the depot records bound in a credential file. filename is
// used only to determine the application id; raw is the file content.
//
// Depots are returned in first-seen order. A depot mentioned more than once
// keeps its position; later key or manifest bindings override earlier ones.
// Statements naming the application id itself are not depots.
func Parse(filename string, raw []byte) (types.Credential, error) {
	appID, err := AppIDFromFilename(filename)
	if err != nil {
		return types.Credential{}, err
	}

	type partial struct {
		key      string
		manifest string
		hasKey   bool
		hasMan   bool
	}
	order := make([]uint32, 0, 8)
	depots := make(map[uint32]*partial)

	get := func(id uint32) *partial {
		if d, ok := depots[id]; ok {
			return d
		}
		d := &partial{}
		depots[id] = d
		order = append(order, id)
		return d
	}

	bindKey := func(rawID, key string, line int) error {
		id, err := parseID(rawID, line)
		if err != nil {
			return err
		}
		if id == appID {
			return nil
		}
		if len(key) != KeyLength {
			return errors.Newf(errors.ErrParse, "depot %d has a %d-character key, want %d hex characters", id, len(key), KeyLength)
		}
		d := get(id)
		d.key = key
		d.hasKey = true
		return nil
	}

	for i, line := range strings.Split(string(raw), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}

		if m := reAddAppIDKey.FindStringSubmatch(line); m != nil {
			if err := bindKey(m[1], m[2], i); err != nil {
				return types.Credential{}, err
			}
			continue
		}
		if m := reAddDepotKey.FindStringSubmatch(line); m != nil {
			if err := bindKey(m[1], m[2], i); err != nil {
				return types.Credential{}, err
			}
			continue
		}
		if m := reSetManifest.FindStringSubmatch(line); m != nil {
			id, err := parseID(m[1], i)
			if err != nil {
				return types.Credential{}, err
			}
			if id == appID {
				continue
			}
			d := get(id)
			d.manifest = m[2]
			d.hasMan = true
			continue
		}
		if reAddAppIDBare.MatchString(line) {
			continue
		}

		return types.Credential{}, errors.Newf(errors.ErrParse, "line %d: unrecognized statement %q", i+1, trimmed)
	}

	if len(order) == 0 {
		return types.Credential{}, errors.New(errors.ErrParse, "no depot statements found")
	}

	result := types.Credential{AppID: appID}
	for _, id := range order {
		d := depots[id]
		if !d.hasKey {
			return types.Credential{}, errors.Newf(errors.ErrParse, "depot %d has a manifest binding but no decryption key", id)
		}
		if !d.hasMan {
			return types.Credential{}, errors.Newf(errors.ErrParse, "depot %d has a decryption key but no manifest binding", id)
		}
		manifestID, err := strconv.ParseUint(d.manifest, 10, 64)
		if err != nil {
			return types.Credential{}, errors.Newf(errors.ErrParse, "depot %d has an invalid manifest id %q", id, d.manifest)
		}
		result.Depots = append(result.Depots, types.Depot{
			DepotID:       id,
			ManifestID:    manifestID,
			DecryptionKey: strings.ToLower(d.key),
		})
	}
	return result, nil
}

func parseID(raw string, line int) (uint32, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, errors.Newf(errors.ErrParse, "line %d: invalid depot id %q", line+1, raw)
	}
	return uint32(id), nil
}
