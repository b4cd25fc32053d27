package normalizer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SyntheticPrefix marks ids that were not present in the source document.
const SyntheticPrefix = "gen_"

// Clock abstracts time retrieval so normalization is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDSeed carries the raw fields a content-derived id is computed from.
type IDSeed struct {
	CreatedAt string
	Handle    string
	Text      string
}

// IDGenerator produces ids for items whose source has none.
type IDGenerator interface {
	SyntheticID(seed IDSeed) string
}

// RandomIDs yields a fresh id on every call, so re-importing the same
// id-less document produces new records.
type RandomIDs struct{}

func (RandomIDs) SyntheticID(IDSeed) string {
	return SyntheticPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ContentIDs derives the id from the raw timestamp, handle and text, making
// re-import of id-less items idempotent.
type ContentIDs struct{}

func (ContentIDs) SyntheticID(seed IDSeed) string {
	hash := sha256.Sum256([]byte(seed.CreatedAt + "\x00" + seed.Handle + "\x00" + seed.Text))
	return SyntheticPrefix + hex.EncodeToString(hash[:16])
}

// Synthetic id modes.
const (
	IDModeRandom  = "random"
	IDModeContent = "content"
)

// ParseIDMode resolves a mode name to a generator. Names are case-insensitive
// and an empty name means random.
func ParseIDMode(mode string) (IDGenerator, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", IDModeRandom:
		return RandomIDs{}, nil
	case IDModeContent:
		return ContentIDs{}, nil
	default:
		return nil, fmt.Errorf("unknown synthetic id mode %q (want %s or %s)", mode, IDModeRandom, IDModeContent)
	}
}

// IDGeneratorFor maps an already validated mode name to a generator.
func IDGeneratorFor(mode string) IDGenerator {
	if g, err := ParseIDMode(mode); err == nil {
		return g
	}
	return RandomIDs{}
}
