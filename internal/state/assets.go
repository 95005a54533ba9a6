package state

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hazechain/haze/internal/chainerr"
	"github.com/hazechain/haze/internal/chaintypes"
	"github.com/hazechain/haze/internal/events"
)

func (m *Manager) applyMistbornAsset(ov *overlay, t *chaintypes.MistbornAssetTx, ts time.Time) error {
	switch t.Action {
	case chaintypes.ActionCreate:
		return m.assetCreate(ov, t, ts)
	case chaintypes.ActionUpdate:
		return m.assetUpdate(ov, t, ts)
	case chaintypes.ActionCondense:
		return m.assetCondense(ov, t, ts)
	case chaintypes.ActionEvaporate:
		return m.assetEvaporate(ov, t, ts)
	case chaintypes.ActionMerge:
		return m.assetMerge(ov, t, ts)
	case chaintypes.ActionSplit:
		return m.assetSplit(ov, t, ts)
	default:
		return chainerr.InvalidTransaction(fmt.Sprintf("unknown asset action %d", t.Action))
	}
}

func (m *Manager) assetCreate(ov *overlay, t *chaintypes.MistbornAssetTx, ts time.Time) error {
	if _, exists := ov.asset(t.AssetID); exists {
		return chainerr.InvalidTransaction("asset already exists")
	}
	if !t.Data.Density.Valid() {
		return chainerr.InvalidMetadataFormat("unknown density level")
	}
	if size := t.Data.MetadataSize(); size > t.Data.Density.Cap() {
		return chainerr.AssetSizeExceeded(size, t.Data.Density.Cap())
	}
	blobRefs, err := parseBlobRefs(t.Data.Metadata)
	if err != nil {
		return chainerr.InvalidMetadataFormat(err.Error())
	}
	data := t.Data
	data.Metadata = mergeMetadata(nil, t.Data.Metadata)

	asset := &chaintypes.AssetState{
		Owner:     t.Data.Owner,
		Data:      data,
		CreatedAt: ts.Unix(),
		UpdatedAt: ts.Unix(),
		BlobRefs:  blobRefs,
	}
	asset.AppendHistory(chaintypes.AssetHistoryEntry{
		Timestamp: ts.Unix(),
		Action:    chaintypes.ActionCreate,
		Changes:   map[string]string{"density": t.Data.Density.String()},
	})
	ov.setAsset(t.AssetID, asset)
	ov.emit(events.Event{Type: events.AssetCreated, AssetID: t.AssetID})
	return nil
}

func (m *Manager) assetUpdate(ov *overlay, t *chaintypes.MistbornAssetTx, ts time.Time) error {
	asset, ok := ov.asset(t.AssetID)
	if !ok {
		return chainerr.InvalidTransaction("asset does not exist")
	}
	if !m.canWrite(asset, t.From) {
		return chainerr.AccessDenied("caller may not update this asset")
	}

	merged := mergeAttributes(asset.Data.Attributes, t.Data.Attributes)
	mergedMeta := mergeMetadata(asset.Data.Metadata, t.Data.Metadata)
	newData := chaintypes.AssetData{
		Density:    asset.Data.Density,
		Metadata:   mergedMeta,
		Attributes: merged,
		GameID:     asset.Data.GameID,
		Owner:      asset.Owner,
	}
	if size := newData.MetadataSize(); size > newData.Density.Cap() {
		return chainerr.AssetSizeExceeded(size, newData.Density.Cap())
	}

	asset.Versions = append(asset.Versions, asset.Data)
	asset.Data = newData
	asset.UpdatedAt = ts.Unix()
	asset.AppendHistory(chaintypes.AssetHistoryEntry{
		Timestamp: ts.Unix(),
		Action:    chaintypes.ActionUpdate,
		Changes:   map[string]string{"attributes": fmt.Sprintf("%d", len(merged))},
	})
	ov.setAsset(t.AssetID, asset)
	ov.emit(events.Event{Type: events.AssetUpdated, AssetID: t.AssetID})
	return nil
}

func (m *Manager) assetCondense(ov *overlay, t *chaintypes.MistbornAssetTx, ts time.Time) error {
	asset, ok := ov.asset(t.AssetID)
	if !ok {
		return chainerr.InvalidTransaction("asset does not exist")
	}
	if !m.canWrite(asset, t.From) {
		return chainerr.AccessDenied("caller may not condense this asset")
	}
	next, ok := asset.Data.Density.Next()
	if !ok {
		return chainerr.InvalidDensityTransition(asset.Data.Density.String(), "none (already Core)")
	}
	asset.Data.Density = next
	asset.UpdatedAt = ts.Unix()
	asset.AppendHistory(chaintypes.AssetHistoryEntry{
		Timestamp: ts.Unix(),
		Action:    chaintypes.ActionCondense,
		Changes:   map[string]string{"density": next.String()},
	})
	ov.setAsset(t.AssetID, asset)
	ov.emit(events.Event{Type: events.AssetCondensed, AssetID: t.AssetID})
	return nil
}

func (m *Manager) assetEvaporate(ov *overlay, t *chaintypes.MistbornAssetTx, ts time.Time) error {
	asset, ok := ov.asset(t.AssetID)
	if !ok {
		return chainerr.InvalidTransaction("asset does not exist")
	}
	if !m.canWrite(asset, t.From) {
		return chainerr.AccessDenied("caller may not evaporate this asset")
	}
	prev, ok := asset.Data.Density.Prev()
	if !ok {
		return chainerr.InvalidDensityTransition(asset.Data.Density.String(), "none (already Ethereal)")
	}
	if size := asset.Data.MetadataSize(); size > prev.Cap() {
		return chainerr.AssetSizeExceeded(size, prev.Cap())
	}
	asset.Data.Density = prev
	asset.UpdatedAt = ts.Unix()
	asset.AppendHistory(chaintypes.AssetHistoryEntry{
		Timestamp: ts.Unix(),
		Action:    chaintypes.ActionEvaporate,
		Changes:   map[string]string{"density": prev.String()},
	})
	ov.setAsset(t.AssetID, asset)
	ov.emit(events.Event{Type: events.AssetEvaporated, AssetID: t.AssetID})
	return nil
}

// assetMerge folds the asset named by the `_other_asset_id` control key
// into t.AssetID: attributes and metadata are merged with the same
// tie-break rule as Update, density rises to the higher of the two, and
// the donor asset is removed entirely.
func (m *Manager) assetMerge(ov *overlay, t *chaintypes.MistbornAssetTx, ts time.Time) error {
	target, ok := ov.asset(t.AssetID)
	if !ok {
		return chainerr.InvalidTransaction("target asset does not exist")
	}
	if !m.canWrite(target, t.From) {
		return chainerr.AccessDenied("caller may not merge into this asset")
	}
	rawOther, ok := t.Data.Metadata[chaintypes.CtrlOtherAssetID]
	if !ok {
		return chainerr.InvalidMetadataFormat("missing _other_asset_id")
	}
	otherID, err := chaintypes.HashFromHex(rawOther)
	if err != nil {
		return chainerr.InvalidMetadataFormat(err.Error())
	}
	if otherID == t.AssetID {
		return chainerr.InvalidTransaction("cannot merge asset into itself")
	}
	other, ok := ov.asset(otherID)
	if !ok {
		return chainerr.InvalidTransaction("other asset does not exist")
	}
	if !m.canWrite(other, t.From) {
		return chainerr.AccessDenied("caller may not merge away the other asset")
	}

	merged := mergeAttributes(target.Data.Attributes, other.Data.Attributes)
	mergedMeta := mergeMetadata(target.Data.Metadata, other.Data.Metadata)
	density := target.Data.Density
	if other.Data.Density > density {
		density = other.Data.Density
	}
	newData := chaintypes.AssetData{
		Density:    density,
		Metadata:   mergedMeta,
		Attributes: merged,
		GameID:     target.Data.GameID,
		Owner:      target.Owner,
	}
	if size := newData.MetadataSize(); size > density.Cap() {
		return chainerr.AssetSizeExceeded(size, density.Cap())
	}

	target.Versions = append(target.Versions, target.Data)
	target.Data = newData
	target.UpdatedAt = ts.Unix()
	target.AppendHistory(chaintypes.AssetHistoryEntry{
		Timestamp: ts.Unix(),
		Action:    chaintypes.ActionMerge,
		Changes:   map[string]string{"absorbed": otherID.String()},
	})
	ov.setAsset(t.AssetID, target)
	ov.deleteAsset(otherID)
	ov.emit(events.Event{Type: events.AssetMerged, AssetID: t.AssetID, Other: otherID})
	return nil
}

// assetSplit divides t.AssetID into the components named (comma-separated)
// by the `_components` control key. Each component is a fresh asset at the
// tier below the source, seeded with the source's full attribute set (kept
// only so far as the lower cap allows) and owned by the same address; the
// source asset is consumed.
func (m *Manager) assetSplit(ov *overlay, t *chaintypes.MistbornAssetTx, ts time.Time) error {
	source, ok := ov.asset(t.AssetID)
	if !ok {
		return chainerr.InvalidTransaction("source asset does not exist")
	}
	if !m.canWrite(source, t.From) {
		return chainerr.AccessDenied("caller may not split this asset")
	}
	raw, ok := t.Data.Metadata[chaintypes.CtrlComponents]
	if !ok || raw == "" {
		return chainerr.InvalidMetadataFormat("missing _components")
	}
	names := strings.Split(raw, ",")
	if len(names) > 100 {
		return chainerr.InvalidMetadataFormat("_components lists more than 100 entries")
	}
	targetDensity, ok := source.Data.Density.Prev()
	if !ok {
		return chainerr.InvalidDensityTransition(source.Data.Density.String(), "none (already Ethereal)")
	}

	componentIDs := make([]chaintypes.Hash, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		id := componentAssetID(t.AssetID, name)
		if _, exists := ov.asset(id); exists {
			return chainerr.InvalidTransaction(fmt.Sprintf("component asset %s already exists", id))
		}
		attrs := fitAttributes(source.Data.Attributes, targetDensity.Cap())
		data := chaintypes.AssetData{
			Density:    targetDensity,
			Metadata:   map[string]string{"name": name},
			Attributes: attrs,
			GameID:     source.Data.GameID,
			Owner:      source.Owner,
		}
		asset := &chaintypes.AssetState{
			Owner:     source.Owner,
			Data:      data,
			CreatedAt: ts.Unix(),
			UpdatedAt: ts.Unix(),
			BlobRefs:  make(map[string]chaintypes.Hash),
		}
		asset.AppendHistory(chaintypes.AssetHistoryEntry{
			Timestamp: ts.Unix(),
			Action:    chaintypes.ActionSplit,
			Changes:   map[string]string{"split_from": t.AssetID.String()},
		})
		ov.setAsset(id, asset)
		componentIDs = append(componentIDs, id)
	}

	ov.deleteAsset(t.AssetID)
	ov.emit(events.Event{Type: events.AssetSplit, AssetID: t.AssetID, Extra: componentIDs})
	return nil
}

func (m *Manager) applySetAssetPermissions(ov *overlay, t *chaintypes.SetAssetPermissionsTx, ts time.Time) error {
	asset, ok := ov.asset(t.AssetID)
	if !ok {
		return chainerr.InvalidTransaction("asset does not exist")
	}
	if asset.Owner != t.From {
		return chainerr.AccessDenied("only the owner may set permissions")
	}
	perms := append([]chaintypes.AssetPermission(nil), t.Permissions...)
	if t.PublicRead {
		perms = append(perms, chaintypes.AssetPermission{Level: chaintypes.PublicRead})
	}
	asset.Permissions = perms
	asset.UpdatedAt = ts.Unix()
	asset.AppendHistory(chaintypes.AssetHistoryEntry{
		Timestamp: ts.Unix(),
		Action:    chaintypes.ActionUpdate,
		Changes:   map[string]string{"permissions": fmt.Sprintf("%d", len(perms))},
	})
	ov.setAsset(t.AssetID, asset)
	ov.emit(events.Event{Type: events.AssetPermissionChanged, AssetID: t.AssetID})
	return nil
}

// canWrite reports whether addr may mutate asset: its owner always can,
// and so can any non-expired grantee holding GameContract-level access.
func (m *Manager) canWrite(asset *chaintypes.AssetState, addr chaintypes.Address) bool {
	if asset.Owner == addr {
		return true
	}
	now := time.Now().Unix()
	for _, p := range asset.Permissions {
		if p.Grantee != addr || p.Level != chaintypes.GameContract {
			continue
		}
		if p.ExpiresAt != nil && *p.ExpiresAt < now {
			continue
		}
		return true
	}
	return false
}

// mergeAttributes folds incoming into base by Name; on collision the
// attribute with the strictly higher Rarity wins, an attribute with a
// Rarity beats one without, and equal (or both-nil) rarity favors the
// incoming value, matching an Update/Merge overwriting the prior state.
func mergeAttributes(base, incoming []chaintypes.Attribute) []chaintypes.Attribute {
	byName := make(map[string]chaintypes.Attribute, len(base)+len(incoming))
	order := make([]string, 0, len(base)+len(incoming))
	for _, a := range base {
		byName[a.Name] = a
		order = append(order, a.Name)
	}
	for _, a := range incoming {
		if existing, ok := byName[a.Name]; ok {
			if !attributeWinsOver(a, existing) {
				continue
			}
		} else {
			order = append(order, a.Name)
		}
		byName[a.Name] = a
	}
	out := make([]chaintypes.Attribute, 0, len(order))
	seen := make(map[string]bool, len(order))
	for _, name := range order {
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, byName[name])
	}
	return out
}

func attributeWinsOver(candidate, existing chaintypes.Attribute) bool {
	if candidate.Rarity == nil && existing.Rarity == nil {
		return true
	}
	if candidate.Rarity == nil {
		return false
	}
	if existing.Rarity == nil {
		return true
	}
	return *candidate.Rarity >= *existing.Rarity
}

func mergeMetadata(base, incoming map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(incoming))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range incoming {
		if strings.HasPrefix(k, "_") {
			continue // control keys never persist into asset metadata
		}
		out[k] = v
	}
	return out
}

// fitAttributes returns the longest ordered prefix of attrs whose combined
// name+value length fits within cap.
func fitAttributes(attrs []chaintypes.Attribute, cap int) []chaintypes.Attribute {
	out := make([]chaintypes.Attribute, 0, len(attrs))
	total := 0
	for _, a := range attrs {
		size := len(a.Name) + len(a.Value)
		if total+size > cap {
			break
		}
		total += size
		out = append(out, a)
	}
	return out
}

func componentAssetID(source chaintypes.Hash, name string) chaintypes.Hash {
	h := sha256.New()
	h.Write(source[:])
	h.Write([]byte(name))
	var id chaintypes.Hash
	copy(id[:], h.Sum(nil))
	return id
}

// parseBlobRefs decodes the `_blob_refs` control metadata key, a JSON
// object mapping blob names to hex-encoded blob hashes, into the asset's
// BlobRefs map. Its absence is not an error: plain metadata-only assets
// never touch the blob store.
func parseBlobRefs(meta map[string]string) (map[string]chaintypes.Hash, error) {
	raw, ok := meta[chaintypes.CtrlBlobRefs]
	if !ok || raw == "" {
		return make(map[string]chaintypes.Hash), nil
	}
	var hexRefs map[string]string
	if err := json.Unmarshal([]byte(raw), &hexRefs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", chaintypes.CtrlBlobRefs, err)
	}
	out := make(map[string]chaintypes.Hash, len(hexRefs))
	for k, v := range hexRefs {
		h, err := chaintypes.HashFromHex(v)
		if err != nil {
			return nil, fmt.Errorf("decode blob ref %s: %w", k, err)
		}
		out[k] = h
	}
	return out, nil
}
