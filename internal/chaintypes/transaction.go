package chaintypes

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
)

// TxKind discriminates the transaction union. Dispatch in the state manager
// and mempool is a type switch over the concrete transaction types; a type
// they do not list falls to the switch's default case.
type TxKind uint8

const (
	KindTransfer TxKind = iota
	KindStake
	KindContractCall
	KindMistbornAsset
	KindSetAssetPermissions
)

// Transaction is the common surface every variant implements. Hash and
// SigningPayload are pure functions of the transaction's fields.
type Transaction interface {
	Kind() TxKind
	Hash() Hash
	Signer() Address
	SigningPayload() []byte
	Signature() []byte
}

func hashJSON(v any) Hash {
	// Deterministic enough for a hash identity within one process: Go's
	// encoding/json sorts map keys and we never feed it a map directly at
	// the top level of a transaction struct.
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return sha256.Sum256(b)
}

// TransferTx moves coins from From to To.
type TransferTx struct {
	From   Address
	To     Address
	Amount uint64
	Fee    uint64
	Nonce  uint64
	Sig    []byte
}

func (t *TransferTx) Kind() TxKind    { return KindTransfer }
func (t *TransferTx) Signer() Address { return t.From }
func (t *TransferTx) Signature() []byte { return t.Sig }
func (t *TransferTx) Hash() Hash {
	return hashJSON(struct {
		Kind   TxKind
		From   Address
		To     Address
		Amount uint64
		Fee    uint64
		Nonce  uint64
		Sig    []byte
	}{KindTransfer, t.From, t.To, t.Amount, t.Fee, t.Nonce, t.Sig})
}

// SigningPayload: "Transfer" || from || to || le64(amount) || le64(fee) || le64(nonce)
func (t *TransferTx) SigningPayload() []byte {
	var buf bytes.Buffer
	buf.WriteString("Transfer")
	buf.Write(t.From[:])
	buf.Write(t.To[:])
	writeLE64(&buf, t.Amount)
	writeLE64(&buf, t.Fee)
	writeLE64(&buf, t.Nonce)
	return buf.Bytes()
}

// StakeTx moves coins from balance into stake for validator.
type StakeTx struct {
	From      Address
	Validator Address
	Amount    uint64
	Fee       uint64
	Nonce     uint64
	Sig       []byte
}

func (t *StakeTx) Kind() TxKind      { return KindStake }
func (t *StakeTx) Signer() Address   { return t.From }
func (t *StakeTx) Signature() []byte { return t.Sig }
func (t *StakeTx) Hash() Hash {
	return hashJSON(struct {
		Kind      TxKind
		From      Address
		Validator Address
		Amount    uint64
		Fee       uint64
		Nonce     uint64
		Sig       []byte
	}{KindStake, t.From, t.Validator, t.Amount, t.Fee, t.Nonce, t.Sig})
}

// SigningPayload: "Stake" || validator || le64(amount)
func (t *StakeTx) SigningPayload() []byte {
	var buf bytes.Buffer
	buf.WriteString("Stake")
	buf.Write(t.Validator[:])
	writeLE64(&buf, t.Amount)
	return buf.Bytes()
}

// ContractCallTx delegates to the WASM collaborator.
type ContractCallTx struct {
	From     Address
	Contract Address
	Method   string
	Args     []byte
	GasLimit uint64
	Fee      uint64
	Nonce    uint64
	Sig      []byte
}

func (t *ContractCallTx) Kind() TxKind      { return KindContractCall }
func (t *ContractCallTx) Signer() Address   { return t.From }
func (t *ContractCallTx) Signature() []byte { return t.Sig }
func (t *ContractCallTx) Hash() Hash {
	return hashJSON(struct {
		Kind     TxKind
		From     Address
		Contract Address
		Method   string
		Args     []byte
		GasLimit uint64
		Fee      uint64
		Nonce    uint64
		Sig      []byte
	}{KindContractCall, t.From, t.Contract, t.Method, t.Args, t.GasLimit, t.Fee, t.Nonce, t.Sig})
}

// SigningPayload: "ContractCall" || contract || method_bytes || 0x00 || le64(gas_limit) || args
func (t *ContractCallTx) SigningPayload() []byte {
	var buf bytes.Buffer
	buf.WriteString("ContractCall")
	buf.Write(t.Contract[:])
	buf.WriteString(t.Method)
	buf.WriteByte(0x00)
	writeLE64(&buf, t.GasLimit)
	buf.Write(t.Args)
	return buf.Bytes()
}

// MistbornAssetTx creates or mutates a Mistborn asset.
type MistbornAssetTx struct {
	From    Address
	Action  AssetAction
	AssetID Hash
	Data    AssetData
	Fee     uint64
	Nonce   uint64
	Sig     []byte
}

func (t *MistbornAssetTx) Kind() TxKind      { return KindMistbornAsset }
func (t *MistbornAssetTx) Signer() Address   { return t.From }
func (t *MistbornAssetTx) Signature() []byte { return t.Sig }
func (t *MistbornAssetTx) Hash() Hash {
	return hashJSON(struct {
		Kind    TxKind
		From    Address
		Action  AssetAction
		AssetID Hash
		Data    AssetData
		Fee     uint64
		Nonce   uint64
		Sig     []byte
	}{KindMistbornAsset, t.From, t.Action, t.AssetID, t.Data, t.Fee, t.Nonce, t.Sig})
}

// SigningPayload: "MistbornAsset" || action_u8 || asset_id || owner || density_u8
// then, for Merge, the 32-byte decoded `_other_asset_id`; for Split, the
// UTF-8 bytes of `_components`. Both control keys live in t.Data.Metadata.
func (t *MistbornAssetTx) SigningPayload() []byte {
	var buf bytes.Buffer
	buf.WriteString("MistbornAsset")
	buf.WriteByte(byte(t.Action))
	buf.Write(t.AssetID[:])
	buf.Write(t.Data.Owner[:])
	buf.WriteByte(byte(t.Data.Density))
	switch t.Action {
	case ActionMerge:
		if raw, ok := t.Data.Metadata[CtrlOtherAssetID]; ok {
			if other, err := HashFromHex(raw); err == nil {
				buf.Write(other[:])
			}
		}
	case ActionSplit:
		buf.WriteString(t.Data.Metadata[CtrlComponents])
	}
	return buf.Bytes()
}

// Control metadata keys consumed by asset actions; they never persist.
const (
	CtrlBlobRefs     = "_blob_refs"
	CtrlOtherAssetID = "_other_asset_id"
	CtrlComponents   = "_components"
)

// SetAssetPermissionsTx grants or revokes access to a non-owner.
type SetAssetPermissionsTx struct {
	From        Address
	AssetID     Hash
	Permissions []AssetPermission
	PublicRead  bool
	Owner       Address
	Fee         uint64
	Nonce       uint64
	Sig         []byte
}

func (t *SetAssetPermissionsTx) Kind() TxKind      { return KindSetAssetPermissions }
func (t *SetAssetPermissionsTx) Signer() Address   { return t.From }
func (t *SetAssetPermissionsTx) Signature() []byte { return t.Sig }
func (t *SetAssetPermissionsTx) Hash() Hash {
	return hashJSON(struct {
		Kind        TxKind
		From        Address
		AssetID     Hash
		Permissions []AssetPermission
		PublicRead  bool
		Owner       Address
		Fee         uint64
		Nonce       uint64
		Sig         []byte
	}{KindSetAssetPermissions, t.From, t.AssetID, t.Permissions, t.PublicRead, t.Owner, t.Fee, t.Nonce, t.Sig})
}

// SigningPayload: "SetAssetPermissions" || asset_id || owner || le64(count) || publicRead
func (t *SetAssetPermissionsTx) SigningPayload() []byte {
	var buf bytes.Buffer
	buf.WriteString("SetAssetPermissions")
	buf.Write(t.AssetID[:])
	buf.Write(t.Owner[:])
	writeLE64(&buf, uint64(len(t.Permissions)))
	if t.PublicRead {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

func writeLE64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}
