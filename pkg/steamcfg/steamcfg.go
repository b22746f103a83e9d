// Package steamcfg merges depot decryption keys into Steam's config.vdf.
//
// Every mutation is a full read-parse-mutate-serialize pass over the file;
// no parsed state is held between operations, so concurrent edits by Steam
// itself are never clobbered with stale data.
package steamcfg

import (
	"strconv"

	"github.com/depotkit/depotkit/pkg/errors"
	"github.com/depotkit/depotkit/pkg/logging"
	"github.com/depotkit/depotkit/pkg/types"
	"github.com/depotkit/depotkit/pkg/vdf"
)

const decryptionKeyField = "DecryptionKey"

// Merger mutates the depots section of one config.vdf.
type Merger struct {
	fs   types.FS
	path string
}

// New creates a Merger for the config.vdf at path.
func New(fs types.FS, path string) *Merger {
	return &Merger{fs: fs, path: path}
}

// SetKeys writes the decryption keys of the given depots into the depots
// section, replacing existing entries for the same depot ids and leaving
// every other key untouched. The operation is idempotent.
func (m *Merger) SetKeys(depots []types.Depot) error {
	if len(depots) == 0 {
		return nil
	}
	return m.mutate(func(depotsNode *vdf.Node) int {
		for _, d := range depots {
			entry := depotsNode.EnsureSection(strconv.FormatUint(uint64(d.DepotID), 10))
			entry.SetLeaf(decryptionKeyField, d.DecryptionKey)
		}
		return len(depots)
	})
}

// RemoveKeys deletes the depots-section entries for the given depot ids.
// Entries already absent are not errors.
func (m *Merger) RemoveKeys(depotIDs []uint32) error {
	if len(depotIDs) == 0 {
		return nil
	}
	return m.mutate(func(depotsNode *vdf.Node) int {
		removed := 0
		for _, id := range depotIDs {
			if depotsNode.RemoveChild(strconv.FormatUint(uint64(id), 10)) {
				removed++
			}
		}
		return removed
	})
}

// ExistingKeys reads the current depot id to decryption key mapping.
func (m *Merger) ExistingKeys() (map[uint32]string, error) {
	_, doc, err := m.load()
	if err != nil {
		return nil, err
	}
	steam, err := steamNode(doc)
	if err != nil {
		return nil, err
	}
	keys := make(map[uint32]string)
	depotsNode := steam.ChildFold("depots")
	if depotsNode == nil {
		return keys, nil
	}
	for _, entry := range depotsNode.Children {
		id, err := strconv.ParseUint(entry.Key, 10, 32)
		if err != nil || !entry.Section {
			continue
		}
		if leaf := entry.Child(decryptionKeyField); leaf != nil {
			keys[uint32(id)] = leaf.Value
		}
	}
	return keys, nil
}

// load reads and parses the config file, returning the raw bytes alongside
// the document so mutate can back them up before a rewrite.
func (m *Merger) load() ([]byte, *vdf.Document, error) {
	raw, err := m.fs.ReadFile(m.path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, errors.ErrIO, "failed to read %s", m.path).WithDetail("path", m.path)
	}
	doc, err := vdf.Parse(raw)
	if err != nil {
		return nil, nil, errors.Wrapf(err, errors.ErrConfigFormat, "failed to parse %s", m.path).WithDetail("path", m.path)
	}
	return raw, doc, nil
}

// mutate runs one read-modify-write cycle. The previous content is kept as a
// .bak sibling before the rewrite, so a failed write never strands Steam
// without a recoverable config.
func (m *Merger) mutate(apply func(depotsNode *vdf.Node) int) error {
	logger := logging.GetLogger("steamcfg")

	raw, doc, err := m.load()
	if err != nil {
		return err
	}

	steam, err := steamNode(doc)
	if err != nil {
		return err
	}

	touched := apply(steam.EnsureSection("depots"))
	if touched == 0 {
		logger.Debug().Str("path", m.path).Msg("No depot entries changed, skipping write")
		return nil
	}

	if err := m.fs.WriteFile(m.path+".bak", raw, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrIO, "failed to back up %s", m.path).WithDetail("path", m.path+".bak")
	}

	// Stage the new content next to the file and rename it into place, so a
	// failure mid-write leaves the current config intact.
	tmp := m.path + ".tmp"
	if err := m.fs.WriteFile(tmp, doc.Serialize(), 0644); err != nil {
		return errors.Wrapf(err, errors.ErrIO, "failed to stage %s", m.path).WithDetail("path", tmp)
	}
	if err := m.fs.Rename(tmp, m.path); err != nil {
		return errors.Wrapf(err, errors.ErrIO, "failed to replace %s", m.path).WithDetail("path", m.path)
	}

	logger.Info().Str("path", m.path).Int("entries", touched).Msg("Updated depot keys")
	return nil
}

// steamNode walks InstallConfigStore/Software/Valve/Steam. Valve and Steam
// are matched case-insensitively; Steam has written both spellings over the
// years. A missing spine means the file is not a Steam config and is never
// written to.
func steamNode(doc *vdf.Document) (*vdf.Node, error) {
	store := doc.Root("InstallConfigStore")
	if store == nil {
		return nil, errors.New(errors.ErrConfigFormat, "config.vdf has no InstallConfigStore section")
	}
	software := store.ChildFold("Software")
	if software == nil {
		return nil, errors.New(errors.ErrConfigFormat, "config.vdf has no Software section")
	}
	valve := software.ChildFold("Valve")
	if valve == nil {
		return nil, errors.New(errors.ErrConfigFormat, "config.vdf has no Valve section")
	}
	steam := valve.ChildFold("Steam")
	if steam == nil {
		return nil, errors.New(errors.ErrConfigFormat, "config.vdf has no Steam section")
	}
	return steam, nil
}
