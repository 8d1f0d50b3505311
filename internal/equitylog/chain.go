package equitylog

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/senyabanana/tender-platform/internal/models"

	"github.com/zeebo/blake3"
)

// Ключ BLAKE3 для записей журнала, ASCII-имя домена, дополненное нулями до 32 байт.
var entryKey = [32]byte{
	't', 'e', 'n', 'd', 'e', 'r', '.', 'e', 'q', 'u', 'i', 't', 'y', '-', 'l', 'o',
	'g', '.', 'e', 'n', 't', 'r', 'y', 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Hash вычисляет хэш записи по её содержимому и хэшу предыдущей записи.
func Hash(entry models.EquityLogEntry) string {
	hasher, err := blake3.NewKeyed(entryKey[:])
	if err != nil {
		panic("equitylog: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(canonical(entry))
	return hex.EncodeToString(hasher.Sum(nil))
}

// Seal проставляет порядковый номер и хэши записи, продолжая цепочку prev.
// prev равен nil для первой записи тендера.
func Seal(entry models.EquityLogEntry, prev *models.EquityLogEntry) models.EquityLogEntry {
	entry.Sequence = 1
	entry.PrevHash = ""
	if prev != nil {
		entry.Sequence = prev.Sequence + 1
		entry.PrevHash = prev.Hash
	}
	entry.Hash = Hash(entry)
	return entry
}

// Verify проверяет, что записи одного тендера образуют непрерывную цепочку.
// Записи должны быть упорядочены по Sequence.
func Verify(entries []models.EquityLogEntry) error {
	var prev *models.EquityLogEntry
	for i := range entries {
		entry := entries[i]
		expectedSeq := int64(1)
		expectedPrev := ""
		if prev != nil {
			expectedSeq = prev.Sequence + 1
			expectedPrev = prev.Hash
			if entry.TenderID != prev.TenderID {
				return fmt.Errorf("entry %s belongs to tender %s, expected %s", entry.ID, entry.TenderID, prev.TenderID)
			}
		}
		if entry.Sequence != expectedSeq {
			return fmt.Errorf("entry %s has sequence %d, expected %d", entry.ID, entry.Sequence, expectedSeq)
		}
		if entry.PrevHash != expectedPrev {
			return fmt.Errorf("entry %s does not link to the previous entry", entry.ID)
		}
		if Hash(entry) != entry.Hash {
			return fmt.Errorf("entry %s content does not match its hash", entry.ID)
		}
		prev = &entries[i]
	}
	return nil
}

func canonical(entry models.EquityLogEntry) []byte {
	var buf bytes.Buffer
	field := func(s string) {
		buf.WriteString(strconv.Itoa(len(s)))
		buf.WriteByte(':')
		buf.WriteString(s)
	}
	field(entry.PrevHash)
	field(entry.ID)
	field(entry.TenderID)
	field(strconv.FormatInt(entry.Sequence, 10))
	field(entry.ActorID)
	field(string(entry.Action))
	field(entry.Description)

	keys := make([]string, 0, len(entry.Metadata))
	for k := range entry.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	field(strconv.Itoa(len(keys)))
	for _, k := range keys {
		field(k)
		field(entry.Metadata[k])
	}
	field(entry.CreatedAt.UTC().Format(time.RFC3339Nano))
	return buf.Bytes()
}
