// Package applist maintains the injection loader's allow-list directory:
// one numbered slot file per active id, content the decimal id.
//
// The live source of truth is the slot table built by scanning the
// directory; slot numbers are an allocation detail and carry no meaning.
// Additions take the lowest free slot so gaps left by removals are refilled;
// removals delete only the slot holding the id and never disturb other
// slots.
package applist

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/depotkit/depotkit/pkg/errors"
	"github.com/depotkit/depotkit/pkg/logging"
	"github.com/depotkit/depotkit/pkg/types"
)

// Manager operates on one allow-list directory.
type Manager struct {
	fs          types.FS
	dir         string
	finiteSlots bool
	maxSlots    int
}

// New creates a Manager. When finiteSlots is set, adds beyond maxSlots fail
// with a CAPACITY error; otherwise slot numbers grow unbounded.
func New(fs types.FS, dir string, finiteSlots bool, maxSlots int) *Manager {
	return &Manager{fs: fs, dir: dir, finiteSlots: finiteSlots, maxSlots: maxSlots}
}

// table is the scanned state of the directory: slot number to id, and the
// reverse mapping. Duplicate ids keep their first slot; later slots holding
// the same id are recorded for cleanup.
type table struct {
	bySlot     map[int]uint32
	byID       map[uint32]int
	duplicates map[int]uint32
	foreign    map[int]bool // slots whose content is not a decimal id
}

func (m *Manager) scan() (*table, error) {
	t := &table{
		bySlot:     make(map[int]uint32),
		byID:       make(map[uint32]int),
		duplicates: make(map[int]uint32),
		foreign:    make(map[int]bool),
	}

	entries, err := m.fs.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return nil, errors.Wrapf(err, errors.ErrIO, "failed to read allow-list directory %s", m.dir)
	}

	// Deterministic slot order so duplicate resolution is stable.
	var slots []int
	names := make(map[int]string)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".txt" {
			continue
		}
		stem := strings.TrimSuffix(entry.Name(), ".txt")
		slot, err := strconv.Atoi(stem)
		if err != nil || slot < 0 {
			continue
		}
		slots = append(slots, slot)
		names[slot] = entry.Name()
	}
	sort.Ints(slots)

	for _, slot := range slots {
		raw, err := m.fs.ReadFile(filepath.Join(m.dir, names[slot]))
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrIO, "failed to read allow-list slot %s", names[slot])
		}
		id, err := strconv.ParseUint(strings.TrimSpace(string(raw)), 10, 32)
		if err != nil {
			t.foreign[slot] = true
			continue
		}
		if _, seen := t.byID[uint32(id)]; seen {
			t.duplicates[slot] = uint32(id)
			continue
		}
		t.bySlot[slot] = uint32(id)
		t.byID[uint32(id)] = slot
	}
	return t, nil
}

// freeSlot returns the lowest unoccupied slot number, or a CAPACITY error
// when the slot count is finite and exhausted. Foreign and duplicate slots
// count as occupied so their files are never overwritten.
func (m *Manager) freeSlot(t *table) (int, error) {
	for slot := 0; ; slot++ {
		if m.finiteSlots && slot >= m.maxSlots {
			return 0, errors.Newf(errors.ErrCapacity, "allow-list is full (%d slots)", m.maxSlots)
		}
		_, used := t.bySlot[slot]
		_, dup := t.duplicates[slot]
		if !used && !dup && !t.foreign[slot] {
			return slot, nil
		}
	}
}

func (m *Manager) slotPath(slot int) string {
	return filepath.Join(m.dir, fmt.Sprintf("%d.txt", slot))
}

func (m *Manager) writeSlot(t *table, slot int, id uint32) error {
	content := strconv.FormatUint(uint64(id), 10) + "\n"
	if err := m.fs.WriteFile(m.slotPath(slot), []byte(content), 0644); err != nil {
		return errors.Wrapf(err, errors.ErrIO, "failed to write allow-list slot %d", slot).
			WithDetail("path", m.slotPath(slot))
	}
	t.bySlot[slot] = id
	t.byID[id] = slot
	return nil
}

// Add ensures every given id has a slot. Ids already present are skipped.
// Duplicate slot files found during the scan are cleaned up first.
func (m *Manager) Add(ids ...uint32) error {
	logger := logging.GetLogger("applist")

	if err := m.fs.MkdirAll(m.dir, 0755); err != nil {
		return errors.Wrapf(err, errors.ErrIO, "failed to create allow-list directory %s", m.dir)
	}

	t, err := m.scan()
	if err != nil {
		return err
	}
	if len(t.duplicates) > 0 {
		if err := m.dropSlots(slotKeys(t.duplicates)); err != nil {
			return err
		}
		logger.Info().Int("count", len(t.duplicates)).Msg("Removed duplicate allow-list entries")
		t.duplicates = make(map[int]uint32)
	}

	added := 0
	for _, id := range ids {
		if _, present := t.byID[id]; present {
			continue
		}
		slot, err := m.freeSlot(t)
		if err != nil {
			return err
		}
		if err := m.writeSlot(t, slot, id); err != nil {
			return err
		}
		added++
	}

	logger.Debug().Int("requested", len(ids)).Int("added", added).Msg("Allow-list updated")
	return nil
}

// Remove deletes the slots holding the given ids. Ids not present are not
// errors; other slots are left exactly as they were.
func (m *Manager) Remove(ids ...uint32) error {
	logger := logging.GetLogger("applist")

	t, err := m.scan()
	if err != nil {
		return err
	}

	removing := make(map[uint32]bool, len(ids))
	var victims []int
	for _, id := range ids {
		removing[id] = true
		if slot, present := t.byID[id]; present {
			victims = append(victims, slot)
		}
	}
	// Duplicate slots holding a removed id must go too; duplicates of other
	// ids stay untouched.
	for slot, id := range t.duplicates {
		if removing[id] {
			victims = append(victims, slot)
		}
	}
	if err := m.dropSlots(victims); err != nil {
		return err
	}

	logger.Debug().Int("requested", len(ids)).Int("removed", len(victims)).Msg("Allow-list entries removed")
	return nil
}

// Reconcile makes the represented id set equal the desired set by applying
// only the additions and removals needed.
func (m *Manager) Reconcile(desired map[uint32]bool) error {
	t, err := m.scan()
	if err != nil {
		return err
	}

	var stale []uint32
	for id := range t.byID {
		if !desired[id] {
			stale = append(stale, id)
		}
	}
	var missing []uint32
	for id := range desired {
		if _, present := t.byID[id]; !present {
			missing = append(missing, id)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i] < stale[j] })
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })

	if len(stale) > 0 {
		if err := m.Remove(stale...); err != nil {
			return err
		}
	}
	if len(missing) > 0 {
		if err := m.Add(missing...); err != nil {
			return err
		}
	}
	return nil
}

// Clear removes every slot file. Used only by the explicit clear-all path.
func (m *Manager) Clear() (int, error) {
	t, err := m.scan()
	if err != nil {
		return 0, err
	}
	var victims []int
	for slot := range t.bySlot {
		victims = append(victims, slot)
	}
	victims = append(victims, slotKeys(t.duplicates)...)
	victims = append(victims, slotSet(t.foreign)...)
	if err := m.dropSlots(victims); err != nil {
		return 0, err
	}
	return len(victims), nil
}

// Renumber rewrites all slots sequentially from 0, preserving id order by
// slot number. Maintenance operation; the install and uninstall paths never
// call it.
func (m *Manager) Renumber() error {
	t, err := m.scan()
	if err != nil {
		return err
	}

	var slots []int
	for slot := range t.bySlot {
		slots = append(slots, slot)
	}
	sort.Ints(slots)

	ids := make([]uint32, 0, len(slots))
	for _, slot := range slots {
		ids = append(ids, t.bySlot[slot])
	}

	victims := append(append(append([]int{}, slots...), slotKeys(t.duplicates)...), slotSet(t.foreign)...)
	if err := m.dropSlots(victims); err != nil {
		return err
	}

	fresh := &table{bySlot: make(map[int]uint32), byID: make(map[uint32]int)}
	for i, id := range ids {
		if err := m.writeSlot(fresh, i, id); err != nil {
			return err
		}
	}
	return nil
}

// IDs returns the set of ids currently represented.
func (m *Manager) IDs() (map[uint32]bool, error) {
	t, err := m.scan()
	if err != nil {
		return nil, err
	}
	ids := make(map[uint32]bool, len(t.byID))
	for id := range t.byID {
		ids[id] = true
	}
	return ids, nil
}

// Stats categorizes the current entries against the known application and
// depot id sets.
type Stats struct {
	TotalSlots int
	AppIDs     int
	DepotIDs   int
	Foreign    int
}

// Stat reports how the current slots map onto the database's view.
func (m *Manager) Stat(appIDs, depotIDs map[uint32]bool) (Stats, error) {
	t, err := m.scan()
	if err != nil {
		return Stats{}, err
	}
	s := Stats{
		TotalSlots: len(t.bySlot) + len(t.duplicates) + len(t.foreign),
		Foreign:    len(t.foreign) + len(t.duplicates),
	}
	for id := range t.byID {
		switch {
		case appIDs[id]:
			s.AppIDs++
		case depotIDs[id]:
			s.DepotIDs++
		default:
			s.Foreign++
		}
	}
	return s, nil
}

func slotSet(m map[int]bool) []int {
	keys := make([]int, 0, len(m))
	for slot := range m {
		keys = append(keys, slot)
	}
	sort.Ints(keys)
	return keys
}

func slotKeys(m map[int]uint32) []int {
	keys := make([]int, 0, len(m))
	for slot := range m {
		keys = append(keys, slot)
	}
	sort.Ints(keys)
	return keys
}

func (m *Manager) dropSlots(slots []int) error {
	for _, slot := range slots {
		if err := m.fs.Remove(m.slotPath(slot)); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, errors.ErrIO, "failed to remove allow-list slot %d", slot).
				WithDetail("path", m.slotPath(slot))
		}
	}
	return nil
}
