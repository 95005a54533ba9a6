package chaintypes

// DensityLevel is the storage tier of a Mistborn asset. Higher tiers permit
// larger metadata and gate blob-store usage.
type DensityLevel uint8

const (
	Ethereal DensityLevel = iota
	Light
	Dense
	Core
)

// Cap returns the maximum total byte length of metadata values plus
// attribute names and values at this density tier (see MetadataSize).
func (d DensityLevel) Cap() int {
	switch d {
	case Ethereal:
		return 5 * 1024
	case Light:
		return 50 * 1024
	case Dense:
		return 5 * 1024 * 1024
	case Core:
		return 50 * 1024 * 1024
	default:
		return 0
	}
}

func (d DensityLevel) String() string {
	switch d {
	case Ethereal:
		return "Ethereal"
	case Light:
		return "Light"
	case Dense:
		return "Dense"
	case Core:
		return "Core"
	default:
		return "Unknown"
	}
}

// Valid reports whether d is one of the four defined tiers.
func (d DensityLevel) Valid() bool { return d <= Core }

// Next returns the tier directly above d and whether one exists.
func (d DensityLevel) Next() (DensityLevel, bool) {
	if d >= Core {
		return d, false
	}
	return d + 1, true
}

// Prev returns the tier directly below d and whether one exists.
func (d DensityLevel) Prev() (DensityLevel, bool) {
	if d == Ethereal {
		return d, false
	}
	return d - 1, true
}

// Attribute is a named NFT trait with an optional rarity score used to
// break ties when merging attribute sets from two sources.
type Attribute struct {
	Name   string   `json:"name"`
	Value  string   `json:"value"`
	Rarity *float64 `json:"rarity,omitempty"`
}

// AssetData is the mutable payload carried by MistbornAsset transactions.
type AssetData struct {
	Density    DensityLevel      `json:"density"`
	Metadata   map[string]string `json:"metadata"`
	Attributes []Attribute       `json:"attributes"`
	GameID     *string           `json:"game_id,omitempty"`
	Owner      Address           `json:"owner"`
}

// MetadataSize sums the byte length of every metadata value and every
// attribute's name+value, the quantity bounded by the density cap.
func (d AssetData) MetadataSize() int {
	total := 0
	for _, v := range d.Metadata {
		total += len(v)
	}
	for _, a := range d.Attributes {
		total += len(a.Name) + len(a.Value)
	}
	return total
}

// PermissionLevel is the access granted to a non-owner.
type PermissionLevel uint8

const (
	GameContract PermissionLevel = iota
	PublicRead
)

// AssetPermission grants a non-owner address access to an asset.
type AssetPermission struct {
	Grantee   Address         `json:"grantee"`
	Level     PermissionLevel `json:"level"`
	GameID    *string         `json:"game_id,omitempty"`
	ExpiresAt *int64          `json:"expires_at,omitempty"`
}

// AssetAction tags the six MistbornAsset operations. Values match the
// signing-payload variant tags fixed in §4.8 of the specification.
type AssetAction uint8

const (
	ActionCreate AssetAction = iota
	ActionUpdate
	ActionCondense
	ActionEvaporate
	ActionMerge
	ActionSplit
)

func (a AssetAction) String() string {
	switch a {
	case ActionCreate:
		return "Create"
	case ActionUpdate:
		return "Update"
	case ActionCondense:
		return "Condense"
	case ActionEvaporate:
		return "Evaporate"
	case ActionMerge:
		return "Merge"
	case ActionSplit:
		return "Split"
	default:
		return "Unknown"
	}
}

// AssetHistoryEntry records one mutation applied to an AssetState. History
// is capped at 100 entries per asset; oldest is dropped on overflow.
type AssetHistoryEntry struct {
	Timestamp int64             `json:"timestamp"`
	Action    AssetAction       `json:"action"`
	Changes   map[string]string `json:"changes"`
}

const MaxAssetHistory = 100

// AssetState is the authoritative on-chain form of a Mistborn asset.
type AssetState struct {
	Owner       Address             `json:"owner"`
	Data        AssetData           `json:"data"`
	CreatedAt   int64               `json:"created_at"`
	UpdatedAt   int64               `json:"updated_at"`
	BlobRefs    map[string]Hash     `json:"blob_refs"`
	History     []AssetHistoryEntry `json:"history"`
	Versions    []AssetData         `json:"versions,omitempty"`
	Permissions []AssetPermission   `json:"permissions,omitempty"`
}

// AppendHistory pushes entry, dropping the oldest entry once the cap is
// exceeded (FIFO).
func (s *AssetState) AppendHistory(entry AssetHistoryEntry) {
	s.History = append(s.History, entry)
	if len(s.History) > MaxAssetHistory {
		s.History = s.History[len(s.History)-MaxAssetHistory:]
	}
}

// Clone returns a deep copy, used by the state manager to stage mutations
// that can be discarded without touching committed state.
func (s *AssetState) Clone() *AssetState {
	if s == nil {
		return nil
	}
	out := *s
	out.Data.Metadata = cloneStringMap(s.Data.Metadata)
	out.Data.Attributes = append([]Attribute(nil), s.Data.Attributes...)
	if s.Data.GameID != nil {
		gid := *s.Data.GameID
		out.Data.GameID = &gid
	}
	out.BlobRefs = make(map[string]Hash, len(s.BlobRefs))
	for k, v := range s.BlobRefs {
		out.BlobRefs[k] = v
	}
	out.History = append([]AssetHistoryEntry(nil), s.History...)
	out.Versions = append([]AssetData(nil), s.Versions...)
	out.Permissions = append([]AssetPermission(nil), s.Permissions...)
	return &out
}

func cloneStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Account holds the balance ledger for one address. Balance and staked are
// non-overlapping; total owned is Balance+Staked.
type Account struct {
	Balance uint64 `json:"balance"`
	Nonce   uint64 `json:"nonce"`
	Staked  uint64 `json:"staked"`
}

func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	out := *a
	return &out
}
